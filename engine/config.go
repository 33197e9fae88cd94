package engine

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/arloliu/tedarls/detector"
	"github.com/arloliu/tedarls/internal/hash"
	"github.com/arloliu/tedarls/rls"
)

// Default configuration values.
const (
	DefaultThreshold   = 2.0
	DefaultDims        = 2
	DefaultMu          = 0.99
	DefaultDelta       = 0.1
	DefaultEccDiv      = 2.0
	DefaultEpsilon     = 1e-6
	DefaultClipMin     = -100.0
	DefaultClipMax     = 100.0
	DefaultMaxDeltaW   = 50.0
	DefaultWindowLimit = 0
	DefaultClamp       = rls.ClampElementwise
)

// Config holds every parameter of an engine.
//
// The yaml keys are the snake_case parameter names accepted by LoadConfig.
// Observers and the logger are runtime wiring and are never serialized.
type Config struct {
	// Threshold is the detector sensitivity (> 0).
	Threshold float64 `yaml:"threshold"`
	// Dims is the number of signals per sample (>= 1).
	Dims int `yaml:"n"`
	// Mu is the RLS forgetting factor in (0, 1].
	Mu float64 `yaml:"rls_mu"`
	// Delta sets the initial inverse-correlation matrices to (1/Delta)·I (> 0).
	Delta float64 `yaml:"rls_delta"`
	// WeightInit is broadcast to every coefficient unless WeightRows is set.
	WeightInit float64 `yaml:"w_init"`
	// WeightRows holds per-dimension initial weight vectors.
	WeightRows [][]float64 `yaml:"w_init_rows,omitempty"`
	// CorrectOutlier substitutes predictions for flagged values.
	CorrectOutlier bool `yaml:"correct_outlier"`
	// PerDimension selects per-dimension detection instead of global detection.
	PerDimension bool `yaml:"use_per_dim_detection"`
	// EccDiv normalizes the eccentricity (> 0).
	EccDiv float64 `yaml:"ecc_div"`
	// Epsilon is the numeric floor for variances and gain denominators (> 0).
	Epsilon float64 `yaml:"epsilon"`

	ClipOutput  bool    `yaml:"clip_output"`
	OutputMin   float64 `yaml:"output_clip_min"`
	OutputMax   float64 `yaml:"output_clip_max"`
	ClipWeights bool    `yaml:"clip_weights"`
	WeightMin   float64 `yaml:"weight_clip_min"`
	WeightMax   float64 `yaml:"weight_clip_max"`

	// MaxDeltaW bounds one weight step (>= 0); how depends on Clamp.
	MaxDeltaW float64           `yaml:"max_dw"`
	Clamp     rls.ClampStrategy `yaml:"max_dw_strategy"`

	// WindowOutlierLimit is the run of consecutive flagged samples that fires the
	// watchdog; 0 disables it.
	WindowOutlierLimit int `yaml:"window_outlier_limit"`

	// Layout selects the regressors. A one-dimensional engine always uses rls.Intercept.
	Layout rls.Layout `yaml:"layout"`

	// History keeps the per-sample flag, prediction and corrected vectors.
	History bool `yaml:"history"`

	Observers []Observer   `yaml:"-"`
	Logger    *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the reference parameter set.
func DefaultConfig() Config {
	return Config{
		Threshold:          DefaultThreshold,
		Dims:               DefaultDims,
		Mu:                 DefaultMu,
		Delta:              DefaultDelta,
		CorrectOutlier:     true,
		EccDiv:             DefaultEccDiv,
		Epsilon:            DefaultEpsilon,
		ClipOutput:         true,
		OutputMin:          DefaultClipMin,
		OutputMax:          DefaultClipMax,
		ClipWeights:        true,
		WeightMin:          DefaultClipMin,
		WeightMax:          DefaultClipMax,
		MaxDeltaW:          DefaultMaxDeltaW,
		Clamp:              DefaultClamp,
		WindowOutlierLimit: DefaultWindowLimit,
		Layout:             rls.LeaveOneOut,
		History:            true,
	}
}

// DetectionMode returns the detector mode selected by PerDimension.
func (c Config) DetectionMode() detector.Mode {
	if c.PerDimension {
		return detector.ModePerDimension
	}

	return detector.ModeGlobal
}

// EffectiveLayout returns the layout the regression bank is built with.
func (c Config) EffectiveLayout() rls.Layout {
	if c.Dims == 1 {
		return rls.Intercept
	}

	return c.Layout
}

func (c Config) bankConfig() rls.Config {
	return rls.Config{
		Dims:        c.Dims,
		Layout:      c.EffectiveLayout(),
		Mu:          c.Mu,
		Delta:       c.Delta,
		Epsilon:     c.Epsilon,
		WeightInit:  c.WeightInit,
		WeightRows:  c.WeightRows,
		ClipOutput:  c.ClipOutput,
		OutputMin:   c.OutputMin,
		OutputMax:   c.OutputMax,
		ClipWeights: c.ClipWeights,
		WeightMin:   c.WeightMin,
		WeightMax:   c.WeightMax,
		MaxDeltaW:   c.MaxDeltaW,
		Clamp:       c.Clamp,
	}
}

func (c Config) detectorParams() detector.Params {
	return detector.Params{
		Threshold: c.Threshold,
		EccDiv:    c.EccDiv,
		Epsilon:   c.Epsilon,
	}
}

// Validate reports the first invalid parameter as an error wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	if c.Dims < 1 {
		return fmt.Errorf("%w: n must be >= 1, got %d", ErrInvalidConfig, c.Dims)
	}
	if !(c.Threshold > 0) || math.IsInf(c.Threshold, 0) {
		return fmt.Errorf("%w: threshold must be a finite value > 0, got %v", ErrInvalidConfig, c.Threshold)
	}
	if !(c.EccDiv > 0) || math.IsInf(c.EccDiv, 0) {
		return fmt.Errorf("%w: ecc_div must be a finite value > 0, got %v", ErrInvalidConfig, c.EccDiv)
	}
	if c.WindowOutlierLimit < 0 {
		return fmt.Errorf("%w: window_outlier_limit must be >= 0, got %d", ErrInvalidConfig, c.WindowOutlierLimit)
	}

	bankCfg := c.bankConfig()
	if err := bankCfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// Clone returns a deep copy of the configuration. Observers are shared.
func (c Config) Clone() Config {
	out := c
	if c.WeightRows != nil {
		out.WeightRows = make([][]float64, len(c.WeightRows))
		for i, row := range c.WeightRows {
			out.WeightRows[i] = append([]float64(nil), row...)
		}
	}
	if c.Observers != nil {
		out.Observers = append([]Observer(nil), c.Observers...)
	}

	return out
}

// Fingerprint returns an xxHash64 digest of every parameter that influences the
// numeric behavior of an engine. Two configurations with the same fingerprint
// produce the same outputs for the same input stream.
func (c Config) Fingerprint() uint64 {
	var sb strings.Builder
	f := func(v float64) {
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		sb.WriteByte(';')
	}
	b := func(v bool) {
		sb.WriteString(strconv.FormatBool(v))
		sb.WriteByte(';')
	}
	i := func(v int) {
		sb.WriteString(strconv.Itoa(v))
		sb.WriteByte(';')
	}

	f(c.Threshold)
	i(c.Dims)
	f(c.Mu)
	f(c.Delta)
	f(c.WeightInit)
	for _, row := range c.WeightRows {
		for _, v := range row {
			f(v)
		}
		sb.WriteByte('|')
	}
	b(c.CorrectOutlier)
	b(c.PerDimension)
	f(c.EccDiv)
	f(c.Epsilon)
	b(c.ClipOutput)
	f(c.OutputMin)
	f(c.OutputMax)
	b(c.ClipWeights)
	f(c.WeightMin)
	f(c.WeightMax)
	f(c.MaxDeltaW)
	i(int(c.Clamp))
	i(c.WindowOutlierLimit)
	i(int(c.EffectiveLayout()))

	return hash.ID(sb.String())
}
