// Package tedarls cleans multivariate sensor streams online.
//
// Every sample is scored with TEDA eccentricity against running statistics. A
// bank of recursive-least-squares regressors, one per signal, predicts each
// signal from the others; flagged values are replaced by those predictions. A
// watchdog restarts the statistics after a sustained run of outliers so the
// engine can follow a genuine level shift.
//
// # Basic Usage
//
//	e, _ := tedarls.New(engine.WithDimensions(3), engine.WithThreshold(3))
//	for _, sample := range samples {
//	    res, err := e.Process(sample)
//	    if err != nil {
//	        return err
//	    }
//	    if res.Outlier {
//	        fmt.Println("replaced", sample, "with", res.Corrected)
//	    }
//	}
//
// A single signal uses NewUnivariate, which regresses on a constant so the
// prediction tracks the signal level:
//
//	e, _ := tedarls.NewUnivariate(engine.WithWatchdog(15))
//
// # Persistence
//
// SaveSnapshot and LoadSnapshot wrap the snapshot package:
//
//	data, _ := tedarls.SaveSnapshot(e, snapshot.WithCompression(format.CompressionZstd))
//	restored, _ := tedarls.LoadSnapshot(data, engine.WithLogger(logger))
//
// # Package Structure
//
// This package provides top-level wrappers for the common cases. The engine
// package holds the configuration, options and processing loop; stats, detector
// and rls hold the building blocks.
package tedarls

import (
	"github.com/arloliu/tedarls/engine"
	"github.com/arloliu/tedarls/snapshot"
)

// New creates a multivariate engine from the default configuration refined by opts.
//
// The default engine expects two signals; use engine.WithDimensions to change it.
func New(opts ...engine.Option) (*engine.Engine, error) {
	return engine.New(opts...)
}

// NewUnivariate creates an engine for a single signal. Options that set the
// dimension count are overridden.
func NewUnivariate(opts ...engine.Option) (*engine.Engine, error) {
	all := make([]engine.Option, 0, len(opts)+1)
	all = append(all, opts...)
	all = append(all, engine.WithDimensions(1))

	return engine.New(all...)
}

// SaveSnapshot encodes the current state of e.
func SaveSnapshot(e *engine.Engine, opts ...snapshot.Option) ([]byte, error) {
	return snapshot.Marshal(e.Checkpoint(), opts...)
}

// LoadSnapshot decodes data and rebuilds the engine it was taken from. Options
// may attach observers or a logger but must not change numeric parameters.
func LoadSnapshot(data []byte, opts ...engine.Option) (*engine.Engine, error) {
	cp, err := snapshot.Unmarshal(data)
	if err != nil {
		return nil, err
	}

	return engine.Restore(cp, opts...)
}
