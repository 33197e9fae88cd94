package rls

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidConfig is returned when a bank cannot be built from the given configuration.
	ErrInvalidConfig = errors.New("rls: invalid configuration")
	// ErrDimensionMismatch is returned when restored state does not match the bank shape.
	ErrDimensionMismatch = errors.New("rls: dimension mismatch")
)

// Layout selects the regressors each predictor sees.
type Layout uint8

const (
	// LeaveOneOut predicts dimension i from every other dimension of the sample.
	LeaveOneOut Layout = iota
	// Intercept predicts every dimension from the constant feature 1.
	Intercept
)

// String returns the string representation of the layout.
func (l Layout) String() string {
	switch l {
	case LeaveOneOut:
		return "leave_one_out"
	case Intercept:
		return "intercept"
	default:
		return "unknown"
	}
}

// ParseLayout returns the Layout for a name, case-insensitive.
func ParseLayout(name string) (Layout, error) {
	switch strings.ToLower(name) {
	case "leave_one_out", "leaveoneout", "loo":
		return LeaveOneOut, nil
	case "intercept", "univariate":
		return Intercept, nil
	default:
		return 0, fmt.Errorf("%w: unknown layout %q", ErrInvalidConfig, name)
	}
}

// ClampStrategy bounds how far a single update may move the weights.
type ClampStrategy uint8

const (
	// ClampElementwise clips every coefficient step to [-MaxDeltaW, MaxDeltaW].
	ClampElementwise ClampStrategy = iota
	// ClampNorm shrinks the step vector so its L2 norm does not exceed MaxDeltaW.
	ClampNorm
	// ClampNone applies the raw RLS step.
	ClampNone
)

// String returns the string representation of the clamp strategy.
func (c ClampStrategy) String() string {
	switch c {
	case ClampElementwise:
		return "elementwise"
	case ClampNorm:
		return "norm"
	case ClampNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseClampStrategy returns the ClampStrategy for a name, case-insensitive.
func ParseClampStrategy(name string) (ClampStrategy, error) {
	switch strings.ToLower(name) {
	case "elementwise", "element", "coefficient":
		return ClampElementwise, nil
	case "norm", "l2":
		return ClampNorm, nil
	case "none", "off":
		return ClampNone, nil
	default:
		return 0, fmt.Errorf("%w: unknown clamp strategy %q", ErrInvalidConfig, name)
	}
}

// Config describes a regression bank.
type Config struct {
	// Dims is the number of dimensions, one predictor per dimension.
	Dims int
	// Layout selects the regressors. LeaveOneOut requires Dims >= 2.
	Layout Layout
	// Mu is the forgetting factor in (0, 1].
	Mu float64
	// Delta scales the initial inverse-correlation matrices to (1/Delta)·I; must be > 0.
	Delta float64
	// Epsilon floors the gain denominator.
	Epsilon float64

	// WeightInit is broadcast to every coefficient when WeightRows is empty.
	WeightInit float64
	// WeightRows optionally sets the initial weights of every predictor. When
	// non-empty it must hold Dims rows of Features() coefficients each.
	WeightRows [][]float64

	ClipOutput bool
	OutputMin  float64
	OutputMax  float64

	ClipWeights bool
	WeightMin   float64
	WeightMax   float64

	// MaxDeltaW bounds the weight step according to Clamp; must be >= 0.
	MaxDeltaW float64
	Clamp     ClampStrategy
}

// Features returns the number of regressors each predictor uses.
func (c *Config) Features() int {
	if c.Layout == Intercept {
		return 1
	}

	return c.Dims - 1
}

// Validate checks the configuration and returns an error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Dims < 1 {
		return fmt.Errorf("%w: dimension count must be >= 1, got %d", ErrInvalidConfig, c.Dims)
	}

	switch c.Layout {
	case LeaveOneOut:
		if c.Dims < 2 {
			return fmt.Errorf("%w: leave-one-out regression needs at least 2 dimensions, got %d", ErrInvalidConfig, c.Dims)
		}
	case Intercept:
	default:
		return fmt.Errorf("%w: unknown layout %d", ErrInvalidConfig, c.Layout)
	}

	if !(c.Mu > 0 && c.Mu <= 1) {
		return fmt.Errorf("%w: forgetting factor must be in (0, 1], got %v", ErrInvalidConfig, c.Mu)
	}
	if !(c.Delta > 0) || math.IsInf(c.Delta, 0) {
		return fmt.Errorf("%w: regularization delta must be > 0, got %v", ErrInvalidConfig, c.Delta)
	}
	if !(c.Epsilon > 0) {
		return fmt.Errorf("%w: epsilon must be > 0, got %v", ErrInvalidConfig, c.Epsilon)
	}
	if c.ClipOutput && !(c.OutputMin <= c.OutputMax) {
		return fmt.Errorf("%w: output clip range [%v, %v] is inverted", ErrInvalidConfig, c.OutputMin, c.OutputMax)
	}
	if c.ClipWeights && !(c.WeightMin <= c.WeightMax) {
		return fmt.Errorf("%w: weight clip range [%v, %v] is inverted", ErrInvalidConfig, c.WeightMin, c.WeightMax)
	}
	if !(c.MaxDeltaW >= 0) {
		return fmt.Errorf("%w: max weight step must be >= 0, got %v", ErrInvalidConfig, c.MaxDeltaW)
	}
	if c.Clamp > ClampNone {
		return fmt.Errorf("%w: unknown clamp strategy %d", ErrInvalidConfig, c.Clamp)
	}

	if len(c.WeightRows) > 0 {
		if len(c.WeightRows) != c.Dims {
			return fmt.Errorf("%w: expected %d initial weight rows, got %d", ErrInvalidConfig, c.Dims, len(c.WeightRows))
		}
		m := c.Features()
		for i, row := range c.WeightRows {
			if len(row) != m {
				return fmt.Errorf("%w: initial weight row %d has %d coefficients, expected %d", ErrInvalidConfig, i, len(row), m)
			}
		}
	}

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Layout) MarshalText() ([]byte, error) {
	if l > Intercept {
		return nil, fmt.Errorf("%w: unknown layout %d", ErrInvalidConfig, l)
	}

	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Layout) UnmarshalText(text []byte) error {
	v, err := ParseLayout(string(text))
	if err != nil {
		return err
	}
	*l = v

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (c ClampStrategy) MarshalText() ([]byte, error) {
	if c > ClampNone {
		return nil, fmt.Errorf("%w: unknown clamp strategy %d", ErrInvalidConfig, c)
	}

	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ClampStrategy) UnmarshalText(text []byte) error {
	v, err := ParseClampStrategy(string(text))
	if err != nil {
		return err
	}
	*c = v

	return nil
}
