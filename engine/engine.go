package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/arloliu/tedarls/detector"
	"github.com/arloliu/tedarls/internal/options"
	"github.com/arloliu/tedarls/rls"
	"github.com/arloliu/tedarls/stats"
)

// Result is the outcome of processing one sample. Every slice is owned by the caller.
type Result struct {
	// Sample is the internal counter k the sample was processed at.
	Sample int
	// Corrected is the cleaned sample: the input, or predictions substituted for
	// flagged values when correction is enabled.
	Corrected []float64
	// Predicted holds the regression output computed with the weights in effect
	// before this sample was learned.
	Predicted []float64
	Outlier   bool
	// Mask holds per-dimension flags in per-dimension mode, nil otherwise.
	Mask []bool
	// Reset reports that the watchdog fired on this sample.
	Reset bool
	// Verdict carries the detector score; zero for a bootstrap sample.
	Verdict detector.Verdict
}

// Engine cleans one multivariate stream, one sample at a time.
//
// An Engine is not safe for concurrent use. Independent streams need independent
// engines; engines share no state.
type Engine struct {
	cfg  Config
	acc  *stats.Accumulator
	det  *detector.Detector
	bank *rls.Bank

	k           int
	consecutive int
	calls       uint64
	resets      uint64

	history   *History
	observers []Observer
	logger    *slog.Logger

	mask []bool
}

// New creates an engine from DefaultConfig refined by opts.
//
// Returns an error wrapping ErrInvalidConfig when the resulting configuration is
// invalid; no engine is returned in that case.
func New(opts ...Option) (*Engine, error) {
	cfg := DefaultConfig()
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	return NewFromConfig(cfg)
}

// NewFromConfig creates an engine from a complete configuration.
func NewFromConfig(cfg Config) (*Engine, error) {
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	acc := stats.New(cfg.Dims)
	det, err := detector.New(cfg.DetectionMode(), cfg.detectorParams(), acc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	bank, err := rls.NewBank(cfg.bankConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Engine{
		cfg:       cfg,
		acc:       acc,
		det:       det,
		bank:      bank,
		k:         1,
		observers: cfg.Observers,
		logger:    logger,
		mask:      make([]bool, cfg.Dims),
	}
	if cfg.History {
		e.history = &History{}
	}

	logger.Debug("engine created",
		slog.Int("n", cfg.Dims),
		slog.String("detection", cfg.DetectionMode().String()),
		slog.String("layout", cfg.EffectiveLayout().String()),
		slog.String("clamp", cfg.Clamp.String()),
		slog.Int("window_outlier_limit", cfg.WindowOutlierLimit),
	)

	return e, nil
}

// Dims returns the number of values per sample.
func (e *Engine) Dims() int {
	return e.cfg.Dims
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg.Clone()
}

// History returns the sample history, or nil when history is disabled.
func (e *Engine) History() *History {
	return e.history
}

// Process runs one sample through detection, correction and learning.
//
// Returns an error wrapping ErrDimensionMismatch when len(sample) differs from the
// configured dimension count, or ErrNonFinite when a value is NaN or infinite.
// The engine state is not modified on error.
func (e *Engine) Process(sample []float64) (Result, error) {
	if len(sample) != e.cfg.Dims {
		return Result{}, fmt.Errorf("%w: expected %d values, got %d", ErrDimensionMismatch, e.cfg.Dims, len(sample))
	}
	for i, v := range sample {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Result{}, fmt.Errorf("%w: value %d is %v", ErrNonFinite, i, v)
		}
	}

	x := append([]float64(nil), sample...)
	res := Result{
		Sample:    e.k,
		Predicted: e.bank.PredictAll(x, nil),
	}
	e.calls++

	if e.k == 1 {
		e.acc.Seed(x)
		res.Corrected = append([]float64(nil), x...)
		if e.det.Mode() == detector.ModePerDimension {
			res.Mask = make([]bool, len(x))
		}
	} else {
		res.Verdict = e.det.Classify(x, e.k, e.mask)
		res.Outlier = res.Verdict.Outlier
		if e.det.Mode() == detector.ModePerDimension {
			res.Mask = append([]bool(nil), e.mask...)
		}

		if res.Outlier {
			e.consecutive++
		} else {
			e.consecutive = 0
		}
		if e.cfg.WindowOutlierLimit > 0 && e.consecutive >= e.cfg.WindowOutlierLimit {
			e.watchdog()
			res.Reset = true
		}

		res.Corrected = e.correct(x, res.Predicted, res.Outlier)
		e.bank.UpdateAll(res.Corrected, x)
	}

	if e.history != nil {
		e.history.append(Record{
			Outlier:   res.Outlier,
			Reset:     res.Reset,
			Predicted: append([]float64(nil), res.Predicted...),
			Corrected: append([]float64(nil), res.Corrected...),
		})
	}
	e.notify(x, &res)

	e.k++

	return res, nil
}

func (e *Engine) correct(x, predicted []float64, outlier bool) []float64 {
	corrected := append([]float64(nil), x...)
	if !outlier || !e.cfg.CorrectOutlier {
		return corrected
	}

	if e.det.Mode() == detector.ModePerDimension {
		for i, flagged := range e.mask {
			if flagged {
				corrected[i] = predicted[i]
			}
		}

		return corrected
	}
	copy(corrected, predicted)

	return corrected
}

// watchdog reinitializes the statistics and the covariance matrices after a
// sustained run of outliers. The learned weights are kept as the new baseline.
// k drops to 1 and is advanced at the end of the call, so the next sample is
// classified against the zeroed statistics and still feeds the bank.
func (e *Engine) watchdog() {
	e.logger.Info("watchdog reset",
		slog.Int("k", e.k),
		slog.Uint64("call", e.calls),
		slog.Int("consecutive_outliers", e.consecutive),
		slog.Uint64("resets", e.resets+1),
	)

	e.acc.Reset()
	e.bank.ResetCovariance()
	e.k = 1
	e.consecutive = 0
	e.resets++
}

func (e *Engine) notify(x []float64, res *Result) {
	if len(e.observers) == 0 {
		return
	}

	ev := Event{
		Call:      e.calls,
		Sample:    res.Sample,
		Input:     x,
		Mean:      e.acc.Mean(),
		GlobalVar: e.acc.GlobalVar(),
		Outlier:   res.Outlier,
		Mask:      append([]bool(nil), res.Mask...),
		Predicted: append([]float64(nil), res.Predicted...),
		Corrected: append([]float64(nil), res.Corrected...),
		Reset:     res.Reset,
	}
	for _, obs := range e.observers {
		obs.Observe(ev)
	}
}

// State is a point-in-time copy of the engine's mutable state.
type State struct {
	// K is the sample counter the next sample will be processed at.
	K int
	// Calls is the number of successfully processed samples, never reset.
	Calls uint64
	// Resets is the number of watchdog resets.
	Resets uint64
	// ConsecutiveOutliers is the current run of flagged samples.
	ConsecutiveOutliers int
	Mean                []float64
	// Var holds the per-dimension sums of squared deviations.
	Var       []float64
	GlobalVar float64
	Weights   [][]float64
}

// State returns a copy of the current engine state.
func (e *Engine) State() State {
	return State{
		K:                   e.k,
		Calls:               e.calls,
		Resets:              e.resets,
		ConsecutiveOutliers: e.consecutive,
		Mean:                e.acc.Mean(),
		Var:                 e.acc.M2(),
		GlobalVar:           e.acc.GlobalVar(),
		Weights:             e.bank.Weights(),
	}
}
