package snapshot

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/tedarls/endian"
	"github.com/arloliu/tedarls/format"
)

const (
	EndiannessMask  = 0x0002 // Mask for endianness bit (bit 1), set for big-endian
	MagicNumberMask = 0xFFF0 // Mask for magic number (bits 4-15)

	MagicSnapshotV1 = 0xED10 // MagicSnapshotV1 identifies an engine snapshot.

	// Version is the payload layout written by Marshal.
	Version = 1

	// HeaderSize is the fixed header size in bytes.
	HeaderSize = 32
)

// Header is the fixed-size section at the start of a snapshot.
type Header struct {
	Options     uint16                 // byte offset 0-1
	Version     uint8                  // byte offset 2
	Compression format.CompressionType // byte offset 3
	RawSize     uint32                 // byte offset 4-7
	PayloadSize uint32                 // byte offset 8-11
	Dims        uint32                 // byte offset 12-15
	Fingerprint uint64                 // byte offset 16-23
	Checksum    uint64                 // byte offset 24-31
}

func newHeader(engine endian.EndianEngine, compression format.CompressionType) Header {
	h := Header{
		Options:     MagicSnapshotV1,
		Version:     Version,
		Compression: compression,
	}
	if endian.IsBigEndian(engine) {
		h.Options |= EndiannessMask
	}

	return h
}

// BigEndian reports whether the payload is big-endian.
func (h *Header) BigEndian() bool {
	return h.Options&EndiannessMask != 0
}

// Engine returns the byte order of the fields after the options word.
func (h *Header) Engine() endian.EndianEngine {
	if h.BigEndian() {
		return endian.GetBigEndianEngine()
	}

	return endian.GetLittleEndianEngine()
}

// Parse decodes and validates the header stored in the first HeaderSize bytes of data.
func (h *Header) Parse(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: %d bytes is shorter than the %d-byte header", ErrInvalidSnapshot, len(data), HeaderSize)
	}

	h.Options = binary.LittleEndian.Uint16(data[0:2])
	if h.Options&MagicNumberMask != MagicSnapshotV1 {
		return fmt.Errorf("%w: bad magic number 0x%04x", ErrInvalidSnapshot, h.Options&MagicNumberMask)
	}
	if h.Options&^(MagicNumberMask|EndiannessMask) != 0 {
		return fmt.Errorf("%w: reserved option bits set", ErrInvalidSnapshot)
	}

	h.Version = data[2]
	if h.Version == 0 || h.Version > Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	h.Compression = format.CompressionType(data[3])
	if !h.Compression.Valid() {
		return fmt.Errorf("%w: unknown compression type 0x%02x", ErrInvalidSnapshot, data[3])
	}

	engine := h.Engine()
	h.RawSize = engine.Uint32(data[4:8])
	h.PayloadSize = engine.Uint32(data[8:12])
	h.Dims = engine.Uint32(data[12:16])
	h.Fingerprint = engine.Uint64(data[16:24])
	h.Checksum = engine.Uint64(data[24:32])

	return nil
}

// Bytes serializes the header.
func (h *Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	engine := h.Engine()

	binary.LittleEndian.PutUint16(b[0:2], h.Options)
	b[2] = h.Version
	b[3] = uint8(h.Compression)
	engine.PutUint32(b[4:8], h.RawSize)
	engine.PutUint32(b[8:12], h.PayloadSize)
	engine.PutUint32(b[12:16], h.Dims)
	engine.PutUint64(b[16:24], h.Fingerprint)
	engine.PutUint64(b[24:32], h.Checksum)

	return b
}

// Info describes a snapshot without decoding its payload.
type Info struct {
	Version     uint8
	Compression format.CompressionType
	BigEndian   bool
	Dims        int
	Fingerprint uint64
	// RawSize is the uncompressed payload size in bytes.
	RawSize int
	// Size is the total snapshot size in bytes, header included.
	Size int
}

// Peek parses the header of data.
func Peek(data []byte) (Info, error) {
	var h Header
	if err := h.Parse(data); err != nil {
		return Info{}, err
	}

	return Info{
		Version:     h.Version,
		Compression: h.Compression,
		BigEndian:   h.BigEndian(),
		Dims:        int(h.Dims),
		Fingerprint: h.Fingerprint,
		RawSize:     int(h.RawSize),
		Size:        HeaderSize + int(h.PayloadSize),
	}, nil
}
