// Package snapshot serializes engine checkpoints into a compact, self-checking
// binary form for persistence across restarts.
//
// A snapshot is a fixed 32-byte header followed by a payload:
//
//	offset  size  field
//	0       2     options: magic number (bits 4-15), endianness (bit 1); always little-endian
//	2       1     format version
//	3       1     payload compression (format.CompressionType)
//	4       4     uncompressed payload size
//	8       4     stored payload size
//	12      4     dimension count
//	16      8     configuration fingerprint
//	24      8     xxHash64 of the uncompressed payload
//
// The payload holds the numeric configuration followed by the learned state:
// counters, running means and variances, regression weights and inverse-correlation
// matrices. Multi-byte fields after the options word use the byte order recorded
// in the header.
//
// Usage:
//
//	data, err := snapshot.Marshal(e.Checkpoint(), snapshot.WithCompression(format.CompressionS2))
//	...
//	cp, err := snapshot.Unmarshal(data)
//	restored, err := engine.Restore(cp, engine.WithLogger(logger))
package snapshot
