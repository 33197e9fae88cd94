package rls

import (
	"fmt"
	"math"
)

// Bank holds one RLS predictor per dimension.
type Bank struct {
	cfg  Config
	dims int
	m    int // regressors per predictor

	w [][]float64 // dims rows of m weights
	p [][]float64 // dims row-major m×m matrices

	// scratch, sized once
	feat []float64
	px   []float64
	fp   []float64
	dw   []float64
}

// NewBank creates a bank from cfg.
//
// Returns an error wrapping ErrInvalidConfig when cfg does not validate.
func NewBank(cfg Config) (*Bank, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := cfg.Features()
	b := &Bank{
		cfg:  cfg,
		dims: cfg.Dims,
		m:    m,
		w:    make([][]float64, cfg.Dims),
		p:    make([][]float64, cfg.Dims),
		feat: make([]float64, m),
		px:   make([]float64, m),
		fp:   make([]float64, m),
		dw:   make([]float64, m),
	}
	// Own a copy so the caller cannot mutate the initial weights afterwards.
	b.cfg.WeightRows = nil

	for i := range cfg.Dims {
		b.w[i] = make([]float64, m)
		if len(cfg.WeightRows) > 0 {
			copy(b.w[i], cfg.WeightRows[i])
		} else {
			for j := range b.w[i] {
				b.w[i][j] = cfg.WeightInit
			}
		}
		b.p[i] = make([]float64, m*m)
	}
	b.ResetCovariance()

	return b, nil
}

// Dims returns the number of predictors.
func (b *Bank) Dims() int {
	return b.dims
}

// Features returns the number of regressors per predictor.
func (b *Bank) Features() int {
	return b.m
}

// Layout returns the regressor layout.
func (b *Bank) Layout() Layout {
	return b.cfg.Layout
}

// features fills dst with the regressors of predictor i for sample x.
func (b *Bank) features(dst, x []float64, i int) {
	if b.cfg.Layout == Intercept {
		dst[0] = 1.0
		return
	}

	idx := 0
	for j, v := range x {
		if j == i {
			continue
		}
		dst[idx] = v
		idx++
	}
}

// dot returns W[i]·features_i(x) without materializing the feature vector.
func (b *Bank) dot(i int, x []float64) float64 {
	w := b.w[i]
	if b.cfg.Layout == Intercept {
		return w[0]
	}

	y := 0.0
	idx := 0
	for j, v := range x {
		if j == i {
			continue
		}
		y += w[idx] * v
		idx++
	}

	return y
}

// PredictAll writes one prediction per dimension of x into dst and returns it.
// A nil or short dst is replaced by a new slice of length Dims().
//
// PredictAll reads the current weights only; it never changes the model.
// The caller guarantees len(x) == Dims().
func (b *Bank) PredictAll(x, dst []float64) []float64 {
	if len(dst) < b.dims {
		dst = make([]float64, b.dims)
	}
	dst = dst[:b.dims]

	for i := range b.dims {
		y := b.dot(i, x)
		if b.cfg.ClipOutput {
			y = clip(y, b.cfg.OutputMin, b.cfg.OutputMax)
		}
		dst[i] = y
	}

	return dst
}

// UpdateAll runs one RLS step on every predictor. Predictor i learns to map the
// regressors taken from x onto target[i].
//
// The caller guarantees len(target) == len(x) == Dims().
func (b *Bank) UpdateAll(target, x []float64) {
	for i := range b.dims {
		b.update(i, target[i], x)
	}
}

func (b *Bank) update(i int, target float64, x []float64) {
	m := b.m
	f := b.feat
	b.features(f, x, i)

	w := b.w[i]
	p := b.p[i]

	// Px = P·f and denom = mu + f·Px
	denom := b.cfg.Mu
	for r := range m {
		row := p[r*m : (r+1)*m]
		s := 0.0
		for c, fc := range f {
			s += row[c] * fc
		}
		b.px[r] = s
		denom += f[r] * s
	}
	denom = max(denom, b.cfg.Epsilon)

	y := 0.0
	for j, fj := range f {
		y += w[j] * fj
	}
	e := target - y

	// b.px becomes the gain g
	for r := range m {
		b.px[r] /= denom
		b.dw[r] = b.px[r] * e
	}
	b.clampStep(b.dw)

	// fᵀ·P
	for c := range m {
		s := 0.0
		for r, fr := range f {
			s += fr * p[r*m+c]
		}
		b.fp[c] = s
	}
	for r := range m {
		g := b.px[r]
		row := p[r*m : (r+1)*m]
		for c := range m {
			row[c] = (row[c] - g*b.fp[c]) / b.cfg.Mu
		}
	}

	for j := range w {
		w[j] += b.dw[j]
		if b.cfg.ClipWeights {
			w[j] = clip(w[j], b.cfg.WeightMin, b.cfg.WeightMax)
		}
	}
}

func (b *Bank) clampStep(dw []float64) {
	limit := b.cfg.MaxDeltaW

	switch b.cfg.Clamp {
	case ClampElementwise:
		for j, v := range dw {
			if math.Abs(v) > limit {
				dw[j] = math.Copysign(limit, v)
			}
		}
	case ClampNorm:
		sq := 0.0
		for _, v := range dw {
			sq += v * v
		}
		norm := math.Sqrt(sq)
		if norm > limit {
			scale := limit / norm
			for j := range dw {
				dw[j] *= scale
			}
		}
	case ClampNone:
	}
}

// ResetCovariance sets every P[i] back to (1/delta)·I and keeps the weights.
func (b *Bank) ResetCovariance() {
	diag := 1.0 / b.cfg.Delta
	for _, p := range b.p {
		clear(p)
		for j := range b.m {
			p[j*b.m+j] = diag
		}
	}
}

// Weights returns a copy of the weight matrix, one row per dimension.
func (b *Bank) Weights() [][]float64 {
	out := make([][]float64, b.dims)
	for i, row := range b.w {
		out[i] = append([]float64(nil), row...)
	}

	return out
}

// Covariance returns a row-major copy of the m×m inverse-correlation matrix of predictor i.
func (b *Bank) Covariance(i int) []float64 {
	return append([]float64(nil), b.p[i]...)
}

// Restore overwrites the weights and inverse-correlation matrices.
//
// w must hold Dims() rows of Features() coefficients and p must hold Dims()
// row-major matrices of Features()² entries. On error the bank is unchanged.
func (b *Bank) Restore(w [][]float64, p [][]float64) error {
	if len(w) != b.dims || len(p) != b.dims {
		return fmt.Errorf("%w: expected %d predictors, got %d weight rows and %d matrices",
			ErrDimensionMismatch, b.dims, len(w), len(p))
	}
	for i := range b.dims {
		if len(w[i]) != b.m {
			return fmt.Errorf("%w: weight row %d has %d coefficients, expected %d", ErrDimensionMismatch, i, len(w[i]), b.m)
		}
		if len(p[i]) != b.m*b.m {
			return fmt.Errorf("%w: matrix %d has %d entries, expected %d", ErrDimensionMismatch, i, len(p[i]), b.m*b.m)
		}
	}

	for i := range b.dims {
		copy(b.w[i], w[i])
		copy(b.p[i], p[i])
	}

	return nil
}

func clip(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
