// Package stats maintains the running statistics consumed by the TEDA outlier detector.
//
// An Accumulator keeps three pieces of state for an n-dimensional stream:
//
//   - a running mean per dimension
//   - a Welford sum of squared deviations per dimension (M2, not the normalized variance)
//   - a scalar global variance accumulator over the squared distance of each sample
//     from the running mean vector
//
// The per-dimension recurrence is the classic Welford update:
//
//	delta := x[i] - mean[i]
//	mean[i] += delta / k
//	m2[i] += delta * (x[i] - mean[i]) // post-update mean
//
// The sample counter k is owned by the caller. At k == 1 the caller seeds the
// accumulator with Seed instead of observing the sample.
//
// An Accumulator is not safe for concurrent use.
package stats
