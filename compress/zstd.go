package compress

// ZstdCompressor compresses payloads with Zstandard. It gives the best ratio of
// the built-in codecs and is the default for snapshots written to disk.
//
// The pure-Go implementation from klauspost/compress is used unless the module is
// built with cgo and the gozstd tag, in which case valyala/gozstd is linked instead.
// Both produce standard Zstandard frames and can read each other's output.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a Zstd codec with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
