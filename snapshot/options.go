package snapshot

import (
	"fmt"

	"github.com/arloliu/tedarls/endian"
	"github.com/arloliu/tedarls/format"
	"github.com/arloliu/tedarls/internal/options"
)

type encodeConfig struct {
	compression format.CompressionType
	engine      endian.EndianEngine
}

func defaultEncodeConfig() encodeConfig {
	return encodeConfig{
		compression: format.CompressionZstd,
		engine:      endian.GetLittleEndianEngine(),
	}
}

// Option configures Marshal.
type Option = options.Option[*encodeConfig]

// WithCompression selects the payload codec. The default is Zstd.
func WithCompression(t format.CompressionType) Option {
	return options.New(func(c *encodeConfig) error {
		if !t.Valid() {
			return fmt.Errorf("%w: unknown compression type %d", ErrInvalidSnapshot, t)
		}
		c.compression = t

		return nil
	})
}

// WithLittleEndian writes the payload little-endian. This is the default.
func WithLittleEndian() Option {
	return options.NoError(func(c *encodeConfig) {
		c.engine = endian.GetLittleEndianEngine()
	})
}

// WithBigEndian writes the payload big-endian.
func WithBigEndian() Option {
	return options.NoError(func(c *encodeConfig) {
		c.engine = endian.GetBigEndianEngine()
	})
}

// WithNativeEndian writes the payload in the byte order of the host.
func WithNativeEndian() Option {
	return options.NoError(func(c *encodeConfig) {
		c.engine = endian.Native()
	})
}
