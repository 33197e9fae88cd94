package compress

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/tedarls/format"
)

// checkpointLikePayload mimics an encoded engine state: slowly varying float64
// values written little-endian.
func checkpointLikePayload(n int) []byte {
	out := make([]byte, 0, n*8)
	for i := range n {
		v := 0.5 + 1e-3*math.Sin(float64(i)/10)
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
	}

	return out
}

var allTypes = []format.CompressionType{
	format.CompressionNone,
	format.CompressionZstd,
	format.CompressionS2,
	format.CompressionLZ4,
}

func TestGetCodec_RoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"small":      []byte("tedarls"),
		"checkpoint": checkpointLikePayload(4096),
		"zeros":      make([]byte, 10000),
	}

	for _, typ := range allTypes {
		for name, payload := range payloads {
			t.Run(typ.String()+"/"+name, func(t *testing.T) {
				codec, err := GetCodec(typ)
				require.NoError(t, err)

				packed, err := codec.Compress(payload)
				require.NoError(t, err)

				unpacked, err := codec.Decompress(packed)
				require.NoError(t, err)
				require.Equal(t, payload, unpacked)
			})
		}
	}
}

func TestGetCodec_Empty(t *testing.T) {
	for _, typ := range allTypes {
		t.Run(typ.String(), func(t *testing.T) {
			codec, err := GetCodec(typ)
			require.NoError(t, err)

			packed, err := codec.Compress(nil)
			require.NoError(t, err)
			require.Empty(t, packed)

			unpacked, err := codec.Decompress(packed)
			require.NoError(t, err)
			require.Empty(t, unpacked)
		})
	}
}

func TestGetCodec_Unsupported(t *testing.T) {
	codec, err := GetCodec(format.CompressionType(0))
	require.Error(t, err)
	require.Nil(t, codec)

	_, err = GetCodec(format.CompressionType(0x9))
	require.Error(t, err)
}

func TestCompress_ShrinksCheckpointPayload(t *testing.T) {
	payload := checkpointLikePayload(8192)

	for _, typ := range []format.CompressionType{format.CompressionZstd, format.CompressionS2, format.CompressionLZ4} {
		t.Run(typ.String(), func(t *testing.T) {
			codec, err := GetCodec(typ)
			require.NoError(t, err)

			packed, err := codec.Compress(payload)
			require.NoError(t, err)
			require.Less(t, len(packed), len(payload))
		})
	}
}

func TestDecompress_Truncated(t *testing.T) {
	payload := checkpointLikePayload(2048)

	for _, typ := range []format.CompressionType{format.CompressionZstd, format.CompressionS2} {
		t.Run(typ.String(), func(t *testing.T) {
			codec, err := GetCodec(typ)
			require.NoError(t, err)

			packed, err := codec.Compress(payload)
			require.NoError(t, err)

			_, err = codec.Decompress(packed[:len(packed)/2])
			require.Error(t, err)
		})
	}
}

func TestNoOp_Aliases(t *testing.T) {
	data := []byte{1, 2, 3}
	packed, err := NewNoOpCompressor().Compress(data)
	require.NoError(t, err)
	require.Same(t, &data[0], &packed[0])
}

func TestLZ4_DecompressSize(t *testing.T) {
	payload := checkpointLikePayload(1024)
	codec := NewLZ4Compressor()

	packed, err := codec.Compress(payload)
	require.NoError(t, err)

	unpacked, err := codec.DecompressSize(packed, len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, unpacked)

	_, err = codec.DecompressSize(packed, len(payload)/2)
	require.Error(t, err)

	_, err = codec.DecompressSize(packed, -1)
	require.Error(t, err)

	out, err := codec.DecompressSize(nil, 0)
	require.NoError(t, err)
	require.Nil(t, out)
}
