package snapshot

import (
	"fmt"
	"io"
	"math"

	"github.com/arloliu/tedarls/compress"
	"github.com/arloliu/tedarls/endian"
	"github.com/arloliu/tedarls/engine"
	"github.com/arloliu/tedarls/internal/hash"
	"github.com/arloliu/tedarls/internal/options"
	"github.com/arloliu/tedarls/internal/pool"
)

// Config flag bits of the payload.
const (
	flagCorrectOutlier = 1 << iota
	flagPerDimension
	flagClipOutput
	flagClipWeights
	flagHistory
)

// Marshal encodes cp. The default settings are Zstd compression and little-endian.
func Marshal(cp *engine.Checkpoint, opts ...Option) ([]byte, error) {
	buf, err := encode(cp, opts)
	if err != nil {
		return nil, err
	}
	defer pool.PutSnapshotBuffer(buf)

	return append([]byte(nil), buf.Bytes()...), nil
}

// Write encodes cp to w and returns the number of bytes written.
func Write(w io.Writer, cp *engine.Checkpoint, opts ...Option) (int64, error) {
	buf, err := encode(cp, opts)
	if err != nil {
		return 0, err
	}
	defer pool.PutSnapshotBuffer(buf)

	return buf.WriteTo(w)
}

// encode returns a pooled buffer holding the complete snapshot. The caller
// returns it with pool.PutSnapshotBuffer.
func encode(cp *engine.Checkpoint, opts []Option) (*pool.ByteBuffer, error) {
	if cp == nil {
		return nil, fmt.Errorf("%w: nil checkpoint", ErrInvalidSnapshot)
	}

	cfg := defaultEncodeConfig()
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}
	if err := checkShape(cp); err != nil {
		return nil, err
	}

	rawBuf := pool.GetSnapshotBuffer()
	defer pool.PutSnapshotBuffer(rawBuf)

	enc := payloadWriter{buf: rawBuf, engine: cfg.engine}
	enc.config(&cp.Config)
	enc.state(cp)

	raw := rawBuf.Bytes()
	if uint64(len(raw)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: payload of %d bytes is too large", ErrInvalidSnapshot, len(raw))
	}

	codec, err := compress.GetCodec(cfg.compression)
	if err != nil {
		return nil, err
	}
	payload, err := codec.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to compress snapshot payload: %w", err)
	}

	h := newHeader(cfg.engine, cfg.compression)
	h.RawSize = uint32(len(raw))         //nolint: gosec
	h.PayloadSize = uint32(len(payload)) //nolint: gosec
	h.Dims = uint32(cp.Config.Dims)      //nolint: gosec
	h.Fingerprint = cp.Config.Fingerprint()
	h.Checksum = hash.Checksum(raw)

	out := pool.GetSnapshotBuffer()
	out.Grow(HeaderSize + len(payload))
	_, _ = out.Write(h.Bytes())
	_, _ = out.Write(payload)

	return out, nil
}

// checkShape verifies that every state slice matches the dimension count so the
// payload can be decoded without length prefixes.
func checkShape(cp *engine.Checkpoint) error {
	n := cp.Config.Dims
	if n < 1 {
		return fmt.Errorf("%w: dimension count %d", ErrInvalidSnapshot, n)
	}
	if len(cp.Mean) != n || len(cp.Var) != n || len(cp.Weights) != n || len(cp.Covariance) != n {
		return fmt.Errorf("%w: state does not match %d dimensions", ErrInvalidSnapshot, n)
	}

	if cp.K < 1 || cp.ConsecutiveOutliers < 0 {
		return fmt.Errorf("%w: counters out of range", ErrInvalidSnapshot)
	}

	m := len(cp.Weights[0])
	for i := range n {
		if len(cp.Weights[i]) != m || len(cp.Covariance[i]) != m*m {
			return fmt.Errorf("%w: predictor %d has an inconsistent shape", ErrInvalidSnapshot, i)
		}
	}

	return nil
}

type payloadWriter struct {
	buf    *pool.ByteBuffer
	engine endian.EndianEngine
}

func (w *payloadWriter) u8(v uint8) {
	w.buf.B = append(w.buf.B, v)
}

func (w *payloadWriter) u32(v int) {
	w.buf.B = w.engine.AppendUint32(w.buf.B, uint32(v)) //nolint: gosec
}

func (w *payloadWriter) u64(v uint64) {
	w.buf.B = w.engine.AppendUint64(w.buf.B, v)
}

func (w *payloadWriter) f64(v float64) {
	w.buf.B = endian.AppendFloat64(w.engine, w.buf.B, v)
}

func (w *payloadWriter) floats(vs []float64) {
	w.buf.Grow(8 * len(vs))
	for _, v := range vs {
		w.f64(v)
	}
}

func (w *payloadWriter) config(c *engine.Config) {
	w.f64(c.Threshold)
	w.u32(c.Dims)
	w.f64(c.Mu)
	w.f64(c.Delta)
	w.f64(c.WeightInit)
	w.f64(c.EccDiv)
	w.f64(c.Epsilon)
	w.f64(c.OutputMin)
	w.f64(c.OutputMax)
	w.f64(c.WeightMin)
	w.f64(c.WeightMax)
	w.f64(c.MaxDeltaW)

	var flags uint8
	if c.CorrectOutlier {
		flags |= flagCorrectOutlier
	}
	if c.PerDimension {
		flags |= flagPerDimension
	}
	if c.ClipOutput {
		flags |= flagClipOutput
	}
	if c.ClipWeights {
		flags |= flagClipWeights
	}
	if c.History {
		flags |= flagHistory
	}
	w.u8(flags)
	w.u8(uint8(c.Clamp))
	w.u8(uint8(c.Layout))
	w.u32(c.WindowOutlierLimit)

	w.u32(len(c.WeightRows))
	for _, row := range c.WeightRows {
		w.u32(len(row))
		w.floats(row)
	}
}

func (w *payloadWriter) state(cp *engine.Checkpoint) {
	w.u64(uint64(cp.K))
	w.u64(cp.Calls)
	w.u64(cp.Resets)
	w.u64(uint64(cp.ConsecutiveOutliers))

	w.floats(cp.Mean)
	w.floats(cp.Var)
	w.f64(cp.GlobalVar)

	w.u32(len(cp.Weights[0]))
	for _, row := range cp.Weights {
		w.floats(row)
	}
	for _, p := range cp.Covariance {
		w.floats(p)
	}
}
