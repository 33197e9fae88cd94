package engine

import (
	"fmt"

	"github.com/arloliu/tedarls/internal/options"
)

// Checkpoint is a deep copy of an engine's configuration and learned state.
//
// Restoring a checkpoint yields an engine that continues the stream exactly as the
// original would have. History, observers and the logger are not part of it.
type Checkpoint struct {
	Config Config

	K                   int
	Calls               uint64
	Resets              uint64
	ConsecutiveOutliers int

	Mean      []float64
	Var       []float64
	GlobalVar float64

	// Weights holds one row per dimension.
	Weights [][]float64
	// Covariance holds one row-major matrix per dimension.
	Covariance [][]float64
}

// Checkpoint captures the current engine state.
func (e *Engine) Checkpoint() *Checkpoint {
	cfg := e.cfg.Clone()
	cfg.Observers = nil
	cfg.Logger = nil

	covs := make([][]float64, e.bank.Dims())
	for i := range covs {
		covs[i] = e.bank.Covariance(i)
	}

	return &Checkpoint{
		Config:              cfg,
		K:                   e.k,
		Calls:               e.calls,
		Resets:              e.resets,
		ConsecutiveOutliers: e.consecutive,
		Mean:                e.acc.Mean(),
		Var:                 e.acc.M2(),
		GlobalVar:           e.acc.GlobalVar(),
		Weights:             e.bank.Weights(),
		Covariance:          covs,
	}
}

// Restore rebuilds an engine from cp. Options are applied on top of the stored
// configuration, typically to attach observers or a logger.
//
// Returns an error wrapping ErrInvalidConfig when the checkpoint is inconsistent.
func Restore(cp *Checkpoint, opts ...Option) (*Engine, error) {
	if cp == nil {
		return nil, fmt.Errorf("%w: nil checkpoint", ErrInvalidConfig)
	}

	cfg := cp.Config.Clone()
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.Fingerprint() != cp.Config.Fingerprint() {
		return nil, fmt.Errorf("%w: restore options must not change numeric parameters", ErrInvalidConfig)
	}

	e, err := NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	if cp.K < 1 {
		return nil, fmt.Errorf("%w: sample counter must be >= 1, got %d", ErrInvalidConfig, cp.K)
	}
	if cp.ConsecutiveOutliers < 0 {
		return nil, fmt.Errorf("%w: consecutive outlier count must be >= 0, got %d", ErrInvalidConfig, cp.ConsecutiveOutliers)
	}
	if !e.acc.Restore(cp.Mean, cp.Var, cp.GlobalVar) {
		return nil, fmt.Errorf("%w: statistics have %d/%d entries, expected %d",
			ErrInvalidConfig, len(cp.Mean), len(cp.Var), cfg.Dims)
	}
	if err := e.bank.Restore(cp.Weights, cp.Covariance); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	e.k = cp.K
	e.calls = cp.Calls
	e.resets = cp.Resets
	e.consecutive = cp.ConsecutiveOutliers

	return e, nil
}
