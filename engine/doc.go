// Package engine cleans a multivariate sensor stream one sample at a time.
//
// An Engine ties together the running statistics (package stats), the TEDA outlier
// detector (package detector) and the regression bank (package rls). For every
// sample, Process:
//
//  1. predicts each value from the weights learned so far
//  2. classifies the sample, globally or per dimension
//  3. fires the watchdog when the run of consecutive outliers reaches the limit
//  4. substitutes predictions for flagged values when correction is enabled
//  5. feeds the corrected sample back to the regression bank
//
// The first sample seeds the statistics and is never flagged.
//
// # Watchdog
//
// With WithWatchdog(limit), a run of limit consecutive outliers resets the
// statistics and the covariance matrices of the regression bank. The learned
// weights are kept. The sample counter restarts, so the following sample is
// processed at k == 2 against the zeroed statistics.
//
// # Configuration
//
// Engines are built from DefaultConfig refined by functional options, from a
// complete Config with NewFromConfig, or from YAML with LoadConfig:
//
//	cfg, err := engine.LoadConfigFile("tedarls.yaml")
//	if err != nil {
//		return err
//	}
//	e, err := engine.NewFromConfig(cfg)
//
// Checkpoint and Restore capture and rebuild the complete learned state. Package
// snapshot serializes checkpoints.
package engine
