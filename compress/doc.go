// Package compress provides the payload codecs used by the snapshot format.
//
// Four codecs are available, selected by format.CompressionType:
//
//   - None: the payload is stored as-is
//   - Zstd: klauspost/compress/zstd, or valyala/gozstd when built with the gozstd tag and cgo
//   - S2: klauspost/compress/s2
//   - LZ4: pierrec/lz4 block format
//
// Engine checkpoints are dominated by float64 arrays whose high bytes repeat, so
// Zstd gives the smallest snapshots while S2 and LZ4 trade some size for speed.
//
// Usage:
//
//	codec, err := compress.GetCodec(format.CompressionZstd)
//	if err != nil {
//		return err
//	}
//	packed, err := codec.Compress(payload)
//
// All codecs are stateless values and safe for concurrent use; encoder and
// decoder state is pooled internally.
package compress
