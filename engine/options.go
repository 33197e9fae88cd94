package engine

import (
	"fmt"
	"log/slog"

	"github.com/arloliu/tedarls/internal/options"
	"github.com/arloliu/tedarls/rls"
)

// Option is a functional option for Config.
type Option = options.Option[*Config]

// WithConfig replaces the whole configuration. Options after it refine the copy.
func WithConfig(cfg Config) Option {
	return options.NoError(func(c *Config) {
		*c = cfg.Clone()
	})
}

// WithThreshold sets the detector sensitivity.
func WithThreshold(threshold float64) Option {
	return options.NoError(func(c *Config) {
		c.Threshold = threshold
	})
}

// WithDimensions sets the number of signals per sample.
func WithDimensions(n int) Option {
	return options.NoError(func(c *Config) {
		c.Dims = n
	})
}

// WithForgettingFactor sets the RLS forgetting factor mu.
func WithForgettingFactor(mu float64) Option {
	return options.NoError(func(c *Config) {
		c.Mu = mu
	})
}

// WithRegularization sets delta, the initial inverse-correlation scale.
func WithRegularization(delta float64) Option {
	return options.NoError(func(c *Config) {
		c.Delta = delta
	})
}

// WithInitialWeight broadcasts w to every regression coefficient.
func WithInitialWeight(w float64) Option {
	return options.NoError(func(c *Config) {
		c.WeightInit = w
		c.WeightRows = nil
	})
}

// WithInitialWeights sets one initial weight vector per dimension.
func WithInitialWeights(rows [][]float64) Option {
	return options.New(func(c *Config) error {
		if len(rows) == 0 {
			return fmt.Errorf("%w: initial weight rows must not be empty", ErrInvalidConfig)
		}
		c.WeightRows = make([][]float64, len(rows))
		for i, row := range rows {
			c.WeightRows[i] = append([]float64(nil), row...)
		}

		return nil
	})
}

// WithCorrection enables or disables substitution of predictions for flagged values.
func WithCorrection(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.CorrectOutlier = enabled
	})
}

// WithPerDimensionDetection selects per-dimension detection when enabled, global
// detection otherwise.
func WithPerDimensionDetection(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.PerDimension = enabled
	})
}

// WithEccentricityDivisor sets the eccentricity normalization divisor.
func WithEccentricityDivisor(div float64) Option {
	return options.NoError(func(c *Config) {
		c.EccDiv = div
	})
}

// WithEpsilon sets the numeric floor.
func WithEpsilon(eps float64) Option {
	return options.NoError(func(c *Config) {
		c.Epsilon = eps
	})
}

// WithOutputClip clips every prediction to [lo, hi].
func WithOutputClip(lo, hi float64) Option {
	return options.New(func(c *Config) error {
		if lo > hi {
			return fmt.Errorf("%w: output clip range [%v, %v] is inverted", ErrInvalidConfig, lo, hi)
		}
		c.ClipOutput = true
		c.OutputMin, c.OutputMax = lo, hi

		return nil
	})
}

// WithoutOutputClip disables prediction clipping.
func WithoutOutputClip() Option {
	return options.NoError(func(c *Config) {
		c.ClipOutput = false
	})
}

// WithWeightClip keeps every regression coefficient within [lo, hi].
func WithWeightClip(lo, hi float64) Option {
	return options.New(func(c *Config) error {
		if lo > hi {
			return fmt.Errorf("%w: weight clip range [%v, %v] is inverted", ErrInvalidConfig, lo, hi)
		}
		c.ClipWeights = true
		c.WeightMin, c.WeightMax = lo, hi

		return nil
	})
}

// WithoutWeightClip disables weight clipping.
func WithoutWeightClip() Option {
	return options.NoError(func(c *Config) {
		c.ClipWeights = false
	})
}

// WithMaxWeightStep bounds one weight update using the given strategy.
func WithMaxWeightStep(maxDW float64, strategy rls.ClampStrategy) Option {
	return options.NoError(func(c *Config) {
		c.MaxDeltaW = maxDW
		c.Clamp = strategy
	})
}

// WithClampStrategy selects how MaxDeltaW bounds a weight update.
func WithClampStrategy(strategy rls.ClampStrategy) Option {
	return options.NoError(func(c *Config) {
		c.Clamp = strategy
	})
}

// WithWatchdog resets the statistics and covariance after limit consecutive
// flagged samples. A limit of 0 disables the watchdog.
func WithWatchdog(limit int) Option {
	return options.NoError(func(c *Config) {
		c.WindowOutlierLimit = limit
	})
}

// WithIntercept predicts each dimension from a constant regressor instead of the
// other dimensions.
func WithIntercept() Option {
	return options.NoError(func(c *Config) {
		c.Layout = rls.Intercept
	})
}

// WithHistory enables or disables the in-memory history.
func WithHistory(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.History = enabled
	})
}

// WithObserver registers an observer notified after every processed sample.
func WithObserver(obs Observer) Option {
	return options.New(func(c *Config) error {
		if obs == nil {
			return fmt.Errorf("%w: observer must not be nil", ErrInvalidConfig)
		}
		c.Observers = append(c.Observers, obs)

		return nil
	})
}

// WithLogger sets the structured logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(c *Config) {
		c.Logger = logger
	})
}
