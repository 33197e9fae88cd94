package snapshot

import (
	"fmt"
	"io"

	"github.com/arloliu/tedarls/compress"
	"github.com/arloliu/tedarls/endian"
	"github.com/arloliu/tedarls/engine"
	"github.com/arloliu/tedarls/internal/hash"
	"github.com/arloliu/tedarls/rls"
)

// maxSnapshotSize bounds what Read accepts from a stream.
const maxSnapshotSize = 64 * 1024 * 1024

// Unmarshal decodes a snapshot produced by Marshal.
//
// Returns an error wrapping ErrInvalidSnapshot for malformed data,
// ErrUnsupportedVersion for a newer format, or ErrChecksumMismatch when the
// payload was altered.
func Unmarshal(data []byte) (*engine.Checkpoint, error) {
	var h Header
	if err := h.Parse(data); err != nil {
		return nil, err
	}
	if len(data)-HeaderSize != int(h.PayloadSize) {
		return nil, fmt.Errorf("%w: expected %d payload bytes, got %d", ErrInvalidSnapshot, h.PayloadSize, len(data)-HeaderSize)
	}

	raw, err := decompress(&h, data[HeaderSize:])
	if err != nil {
		return nil, err
	}
	if len(raw) != int(h.RawSize) {
		return nil, fmt.Errorf("%w: expected %d decoded bytes, got %d", ErrInvalidSnapshot, h.RawSize, len(raw))
	}
	if sum := hash.Checksum(raw); sum != h.Checksum {
		return nil, fmt.Errorf("%w: header 0x%016x, payload 0x%016x", ErrChecksumMismatch, h.Checksum, sum)
	}

	dec := payloadReader{b: raw, engine: h.Engine()}
	cp := &engine.Checkpoint{}
	dec.config(&cp.Config)
	dec.state(cp)
	if dec.err != nil {
		return nil, dec.err
	}
	if dec.off != len(raw) {
		return nil, fmt.Errorf("%w: %d trailing payload bytes", ErrInvalidSnapshot, len(raw)-dec.off)
	}

	if cp.Config.Dims != int(h.Dims) {
		return nil, fmt.Errorf("%w: header declares %d dimensions, payload %d", ErrInvalidSnapshot, h.Dims, cp.Config.Dims)
	}
	if fp := cp.Config.Fingerprint(); fp != h.Fingerprint {
		return nil, fmt.Errorf("%w: configuration fingerprint 0x%016x does not match header 0x%016x", ErrInvalidSnapshot, fp, h.Fingerprint)
	}

	return cp, nil
}

// Read decodes one snapshot from r. The whole stream is consumed.
func Read(r io.Reader) (*engine.Checkpoint, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSnapshotSize+1))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) > maxSnapshotSize {
		return nil, fmt.Errorf("%w: snapshot exceeds %d bytes", ErrInvalidSnapshot, maxSnapshotSize)
	}

	return Unmarshal(data)
}

func decompress(h *Header, payload []byte) ([]byte, error) {
	codec, err := compress.GetCodec(h.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	var raw []byte
	if sized, ok := codec.(compress.SizedDecompressor); ok {
		raw, err = sized.DecompressSize(payload, int(h.RawSize))
	} else {
		raw, err = codec.Decompress(payload)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decompress %s payload: %w", ErrInvalidSnapshot, h.Compression, err)
	}

	return raw, nil
}

// payloadReader decodes fields sequentially. The first failure is kept in err
// and turns every later read into a no-op.
type payloadReader struct {
	b      []byte
	off    int
	engine endian.EndianEngine
	err    error
}

func (r *payloadReader) take(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.b)-r.off < n {
		r.err = fmt.Errorf("%w: truncated payload reading %s", ErrInvalidSnapshot, what)
		return nil
	}
	out := r.b[r.off : r.off+n]
	r.off += n

	return out
}

func (r *payloadReader) u8(what string) uint8 {
	b := r.take(1, what)
	if b == nil {
		return 0
	}

	return b[0]
}

func (r *payloadReader) u32(what string) int {
	b := r.take(4, what)
	if b == nil {
		return 0
	}

	return int(r.engine.Uint32(b))
}

func (r *payloadReader) u64(what string) uint64 {
	b := r.take(8, what)
	if b == nil {
		return 0
	}

	return r.engine.Uint64(b)
}

func (r *payloadReader) f64(what string) float64 {
	b := r.take(8, what)
	if b == nil {
		return 0
	}

	return endian.Float64(r.engine, b)
}

func (r *payloadReader) floats(n int, what string) []float64 {
	b := r.take(8*n, what)
	if b == nil {
		return nil
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = endian.Float64(r.engine, b[i*8:])
	}

	return out
}

// count reads a length prefix and rejects values that cannot fit in the rest of
// the payload at minSize bytes per element.
func (r *payloadReader) count(minSize int, what string) int {
	n := r.u32(what)
	if r.err == nil && n*minSize > len(r.b)-r.off {
		r.err = fmt.Errorf("%w: %s count %d exceeds payload", ErrInvalidSnapshot, what, n)
		return 0
	}

	return n
}

func (r *payloadReader) config(c *engine.Config) {
	c.Threshold = r.f64("threshold")
	c.Dims = r.u32("dimension count")
	c.Mu = r.f64("forgetting factor")
	c.Delta = r.f64("regularization")
	c.WeightInit = r.f64("initial weight")
	c.EccDiv = r.f64("eccentricity divisor")
	c.Epsilon = r.f64("epsilon")
	c.OutputMin = r.f64("output clip min")
	c.OutputMax = r.f64("output clip max")
	c.WeightMin = r.f64("weight clip min")
	c.WeightMax = r.f64("weight clip max")
	c.MaxDeltaW = r.f64("max weight step")

	flags := r.u8("flags")
	c.CorrectOutlier = flags&flagCorrectOutlier != 0
	c.PerDimension = flags&flagPerDimension != 0
	c.ClipOutput = flags&flagClipOutput != 0
	c.ClipWeights = flags&flagClipWeights != 0
	c.History = flags&flagHistory != 0

	c.Clamp = rls.ClampStrategy(r.u8("clamp strategy"))
	c.Layout = rls.Layout(r.u8("layout"))
	c.WindowOutlierLimit = r.u32("watchdog limit")

	if rows := r.count(4, "initial weight rows"); rows > 0 {
		c.WeightRows = make([][]float64, rows)
		for i := range c.WeightRows {
			c.WeightRows[i] = r.floats(r.count(8, "initial weights"), "initial weights")
		}
	}
}

func (r *payloadReader) state(cp *engine.Checkpoint) {
	n := cp.Config.Dims
	if r.err == nil && n*8 > len(r.b)-r.off {
		r.err = fmt.Errorf("%w: dimension count %d exceeds payload", ErrInvalidSnapshot, n)
		return
	}

	cp.K = int(r.u64("sample counter"))
	cp.Calls = r.u64("call counter")
	cp.Resets = r.u64("reset counter")
	cp.ConsecutiveOutliers = int(r.u64("outlier run"))
	if r.err == nil && (cp.K < 1 || cp.ConsecutiveOutliers < 0) {
		r.err = fmt.Errorf("%w: counters out of range", ErrInvalidSnapshot)
		return
	}

	cp.Mean = r.floats(n, "means")
	cp.Var = r.floats(n, "variances")
	cp.GlobalVar = r.f64("global variance")

	m := r.count(8*n, "features")
	if r.err != nil {
		return
	}
	cp.Weights = make([][]float64, n)
	for i := range cp.Weights {
		cp.Weights[i] = r.floats(m, "weights")
	}
	cp.Covariance = make([][]float64, n)
	for i := range cp.Covariance {
		cp.Covariance[i] = r.floats(m*m, "covariance")
	}
}
