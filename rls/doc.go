// Package rls implements a bank of exponentially weighted recursive least-squares
// (RLS) linear predictors, one per dimension of a multivariate stream.
//
// # Layouts
//
// With the LeaveOneOut layout, predictor i estimates x[i] from the other n-1
// dimensions of the same sample, in their original order:
//
//	features_i(x) = (x[0], ..., x[i-1], x[i+1], ..., x[n-1])
//	y[i]          = W[i] · features_i(x)
//
// With the Intercept layout, every predictor sees the constant feature 1 and
// learns a single level per dimension. This is the only layout available for a
// one-dimensional stream.
//
// # Update
//
// For every dimension the bank keeps a weight row W[i] and an inverse-correlation
// matrix P[i], initialized to (1/delta)·I. One update step with forgetting factor mu is:
//
//	Px    = P·f
//	denom = max(mu + f·Px, epsilon)
//	g     = Px / denom
//	e     = target[i] - W[i]·f
//	dw    = clamp(g·e)
//	W[i] += dw                      (optionally clipped)
//	P     = (P - g ⊗ (fᵀ·P)) / mu
//
// The step clamp is either a per-coefficient bound (ClampElementwise), a rescale of
// the whole step to a maximal L2 norm (ClampNorm), or disabled (ClampNone).
//
// A Bank is not safe for concurrent use.
package rls
