package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/tedarls/engine"
	"github.com/arloliu/tedarls/format"
)

func stream(seed uint64, n, dims int) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, seed^0x5eed))
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, dims)
		for j := range out[i] {
			out[i][j] = rng.NormFloat64() + float64(j)
		}
	}

	return out
}

func trainedEngine(t *testing.T, samples int, opts ...engine.Option) *engine.Engine {
	t.Helper()

	e, err := engine.New(opts...)
	require.NoError(t, err)
	for _, s := range stream(21, samples, e.Dims()) {
		_, err := e.Process(s)
		require.NoError(t, err)
	}

	return e
}

var compressions = []format.CompressionType{
	format.CompressionNone,
	format.CompressionZstd,
	format.CompressionS2,
	format.CompressionLZ4,
}

func TestMarshal_RoundTrip(t *testing.T) {
	e := trainedEngine(t, 80, engine.WithDimensions(4), engine.WithWatchdog(6), engine.WithPerDimensionDetection(true))
	cp := e.Checkpoint()

	for _, c := range compressions {
		for name, opt := range map[string]Option{"little": WithLittleEndian(), "big": WithBigEndian(), "native": WithNativeEndian()} {
			t.Run(c.String()+"/"+name, func(t *testing.T) {
				data, err := Marshal(cp, WithCompression(c), opt)
				require.NoError(t, err)

				decoded, err := Unmarshal(data)
				require.NoError(t, err)
				require.Equal(t, cp, decoded)
			})
		}
	}
}

func TestMarshal_RestoredEngineContinues(t *testing.T) {
	e := trainedEngine(t, 50, engine.WithDimensions(3), engine.WithThreshold(3))

	data, err := Marshal(e.Checkpoint())
	require.NoError(t, err)
	cp, err := Unmarshal(data)
	require.NoError(t, err)
	restored, err := engine.Restore(cp)
	require.NoError(t, err)

	for _, s := range stream(77, 40, 3) {
		want, err := e.Process(s)
		require.NoError(t, err)
		got, err := restored.Process(s)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestMarshal_PreservesConfiguration(t *testing.T) {
	e := trainedEngine(t, 5,
		engine.WithDimensions(3),
		engine.WithInitialWeights([][]float64{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}),
		engine.WithCorrection(false),
		engine.WithoutOutputClip(),
		engine.WithWeightClip(-3, 3),
		engine.WithHistory(false),
	)
	cp := e.Checkpoint()

	data, err := Marshal(cp, WithCompression(format.CompressionS2))
	require.NoError(t, err)
	decoded, err := Unmarshal(data)
	require.NoError(t, err)

	require.Equal(t, [][]float64{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}, decoded.Config.WeightRows)
	require.False(t, decoded.Config.CorrectOutlier)
	require.False(t, decoded.Config.ClipOutput)
	require.True(t, decoded.Config.ClipWeights)
	require.False(t, decoded.Config.History)
	require.Equal(t, cp.Config.Fingerprint(), decoded.Config.Fingerprint())
}

func TestMarshal_Univariate(t *testing.T) {
	e := trainedEngine(t, 30, engine.WithDimensions(1))
	cp := e.Checkpoint()

	data, err := Marshal(cp, WithCompression(format.CompressionLZ4))
	require.NoError(t, err)
	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, cp, decoded)
}

func TestPeek(t *testing.T) {
	e := trainedEngine(t, 10, engine.WithDimensions(5))
	cp := e.Checkpoint()

	data, err := Marshal(cp, WithCompression(format.CompressionS2), WithBigEndian())
	require.NoError(t, err)

	info, err := Peek(data)
	require.NoError(t, err)
	require.Equal(t, uint8(Version), info.Version)
	require.Equal(t, format.CompressionS2, info.Compression)
	require.True(t, info.BigEndian)
	require.Equal(t, 5, info.Dims)
	require.Equal(t, cp.Config.Fingerprint(), info.Fingerprint)
	require.Equal(t, len(data), info.Size)
	require.Positive(t, info.RawSize)
}

func TestMarshal_EndiannessChangesBytes(t *testing.T) {
	cp := trainedEngine(t, 10).Checkpoint()

	le, err := Marshal(cp, WithCompression(format.CompressionNone))
	require.NoError(t, err)
	be, err := Marshal(cp, WithCompression(format.CompressionNone), WithBigEndian())
	require.NoError(t, err)

	require.Len(t, be, len(le))
	require.NotEqual(t, le, be)
	require.Equal(t, uint16(MagicSnapshotV1), binary.LittleEndian.Uint16(le[0:2]))
	require.Equal(t, uint16(MagicSnapshotV1|EndiannessMask), binary.LittleEndian.Uint16(be[0:2]))
}

func TestWriteRead(t *testing.T) {
	cp := trainedEngine(t, 25, engine.WithDimensions(2)).Checkpoint()

	var buf bytes.Buffer
	n, err := Write(&buf, cp)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)

	decoded, err := Read(&buf)
	require.NoError(t, err)
	require.Equal(t, cp, decoded)
}

func TestMarshal_Errors(t *testing.T) {
	_, err := Marshal(nil)
	require.ErrorIs(t, err, ErrInvalidSnapshot)

	cp := trainedEngine(t, 5).Checkpoint()
	_, err = Marshal(cp, WithCompression(format.CompressionType(0x7)))
	require.ErrorIs(t, err, ErrInvalidSnapshot)

	bad := trainedEngine(t, 5).Checkpoint()
	bad.Mean = bad.Mean[:1]
	_, err = Marshal(bad)
	require.ErrorIs(t, err, ErrInvalidSnapshot)

	bad = trainedEngine(t, 5).Checkpoint()
	bad.Covariance[0] = nil
	_, err = Marshal(bad)
	require.ErrorIs(t, err, ErrInvalidSnapshot)

	bad = trainedEngine(t, 5).Checkpoint()
	bad.K = 0
	_, err = Marshal(bad)
	require.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestUnmarshal_Corruption(t *testing.T) {
	cp := trainedEngine(t, 40, engine.WithDimensions(3)).Checkpoint()
	data, err := Marshal(cp, WithCompression(format.CompressionNone))
	require.NoError(t, err)

	mutate := func(f func(b []byte) []byte) []byte {
		return f(append([]byte(nil), data...))
	}

	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{name: "empty", data: nil, err: ErrInvalidSnapshot},
		{name: "short header", data: data[:HeaderSize-1], err: ErrInvalidSnapshot},
		{name: "truncated payload", data: data[:len(data)-8], err: ErrInvalidSnapshot},
		{name: "trailing bytes", data: append(append([]byte(nil), data...), 0), err: ErrInvalidSnapshot},
		{
			name: "bad magic",
			data: mutate(func(b []byte) []byte { b[1] = 0x00; return b }),
			err:  ErrInvalidSnapshot,
		},
		{
			name: "reserved option bit",
			data: mutate(func(b []byte) []byte { b[0] |= 0x01; return b }),
			err:  ErrInvalidSnapshot,
		},
		{
			name: "future version",
			data: mutate(func(b []byte) []byte { b[2] = Version + 1; return b }),
			err:  ErrUnsupportedVersion,
		},
		{
			name: "unknown compression",
			data: mutate(func(b []byte) []byte { b[3] = 0x0F; return b }),
			err:  ErrInvalidSnapshot,
		},
		{
			name: "flipped payload bit",
			data: mutate(func(b []byte) []byte { b[HeaderSize+20] ^= 0x01; return b }),
			err:  ErrChecksumMismatch,
		},
		{
			name: "altered fingerprint",
			data: mutate(func(b []byte) []byte { b[16] ^= 0xFF; return b }),
			err:  ErrInvalidSnapshot,
		},
		{
			name: "altered dimension count",
			data: mutate(func(b []byte) []byte { b[12]++; return b }),
			err:  ErrInvalidSnapshot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp, err := Unmarshal(tt.data)
			require.ErrorIs(t, err, tt.err)
			require.Nil(t, cp)
		})
	}
}

func TestUnmarshal_CorruptedCompressedPayload(t *testing.T) {
	cp := trainedEngine(t, 40, engine.WithDimensions(3)).Checkpoint()

	for _, c := range compressions[1:] {
		t.Run(c.String(), func(t *testing.T) {
			data, err := Marshal(cp, WithCompression(c))
			require.NoError(t, err)
			data[len(data)-4] ^= 0x5A

			_, err = Unmarshal(data)
			require.True(t, errors.Is(err, ErrInvalidSnapshot) || errors.Is(err, ErrChecksumMismatch), "unexpected error: %v", err)
		})
	}
}
