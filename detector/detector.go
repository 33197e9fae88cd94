// Package detector implements TEDA eccentricity-based outlier detection on top of
// the running statistics kept by package stats.
//
// Two modes are available. ModeGlobal scores the whole sample as one vector against
// a scalar global variance; ModePerDimension scores each dimension against its own
// Welford variance and reports a mask.
//
// Both modes compare the normalized eccentricity against the dynamic threshold
//
//	(threshold² + 1) / (2k)
//
// which shrinks as k grows, so typicality tightens as evidence accumulates.
package detector

import (
	"fmt"

	"github.com/arloliu/tedarls/stats"
)

// Mode selects how a sample is scored.
type Mode uint8

const (
	// ModeGlobal scores the sample as one vector using the global variance accumulator.
	ModeGlobal Mode = iota
	// ModePerDimension scores every dimension independently and reports a mask.
	ModePerDimension
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeGlobal:
		return "global"
	case ModePerDimension:
		return "per_dimension"
	default:
		return "unknown"
	}
}

// minGlobalSigma2 stands in for the global variance before a second sample exists.
const minGlobalSigma2 = 1e-8

// Params holds the numeric parameters shared by both modes.
type Params struct {
	// Threshold is the detector sensitivity; larger values flag fewer samples.
	Threshold float64
	// EccDiv divides the raw eccentricity before it is compared with the threshold.
	EccDiv float64
	// Epsilon floors the variance. In per-dimension mode a variance below Epsilon
	// skips detection for that dimension.
	Epsilon float64
}

// Verdict is the outcome of classifying one sample.
type Verdict struct {
	// Outlier reports whether the sample was flagged.
	Outlier bool
	// Eccentricity is the normalized eccentricity. In per-dimension mode it is the
	// largest score among the dimensions that were evaluated, 0 if none were.
	Eccentricity float64
	// Threshold is the dynamic threshold the score was compared with.
	Threshold float64
}

// Detector classifies samples and updates the statistics it reads from.
//
// A Detector is not safe for concurrent use.
type Detector struct {
	mode   Mode
	params Params
	acc    *stats.Accumulator
}

// New creates a Detector bound to acc.
func New(mode Mode, params Params, acc *stats.Accumulator) (*Detector, error) {
	if mode != ModeGlobal && mode != ModePerDimension {
		return nil, fmt.Errorf("unknown detector mode: %d", mode)
	}
	if acc == nil {
		return nil, fmt.Errorf("detector requires a statistics accumulator")
	}

	return &Detector{mode: mode, params: params, acc: acc}, nil
}

// Mode returns the detection mode.
func (d *Detector) Mode() Mode {
	return d.mode
}

// Threshold returns the dynamic threshold (threshold² + 1) / (2k).
func Threshold(threshold float64, k int) float64 {
	return (threshold*threshold + 1.0) / (2.0 * float64(k))
}

// Classify updates the statistics with x and reports whether x is an outlier at
// sample index k.
//
// In ModePerDimension mask receives the per-dimension flags and must have the same
// length as x. In ModeGlobal mask may be nil; when non-nil it is cleared.
func (d *Detector) Classify(x []float64, k int, mask []bool) Verdict {
	if d.mode == ModePerDimension {
		return d.classifyPerDimension(x, k, mask)
	}
	clear(mask)

	return d.classifyGlobal(x, k)
}

func (d *Detector) classifyGlobal(x []float64, k int) Verdict {
	distSq := d.acc.ObserveGlobal(x, k)

	sigma2 := minGlobalSigma2
	if k > 1 {
		sigma2 = d.acc.GlobalVar() / float64(k-1)
	}
	sigma2 = max(sigma2, d.params.Epsilon)

	kf := float64(k)
	ecc := 1.0/kf + distSq/(kf*sigma2)
	eccNorm := ecc / d.params.EccDiv
	thresh := Threshold(d.params.Threshold, k)

	return Verdict{
		Outlier:      eccNorm > thresh,
		Eccentricity: eccNorm,
		Threshold:    thresh,
	}
}

func (d *Detector) classifyPerDimension(x []float64, k int, mask []bool) Verdict {
	kf := float64(k)
	thresh := Threshold(d.params.Threshold, k)
	verdict := Verdict{Threshold: thresh}

	for i, v := range x {
		mask[i] = false
		d.acc.ObserveDim(i, v, k)

		if k < 2 {
			continue
		}
		sigma2 := d.acc.Variance(i, k)
		if sigma2 < d.params.Epsilon {
			// not enough spread to judge this dimension
			continue
		}

		dev := v - d.acc.MeanAt(i)
		d2 := dev * dev / sigma2
		ecc := 1.0/kf + d2/kf
		eccNorm := ecc / d.params.EccDiv

		verdict.Eccentricity = max(verdict.Eccentricity, eccNorm)
		if eccNorm > thresh {
			mask[i] = true
			verdict.Outlier = true
		}
	}

	return verdict
}
