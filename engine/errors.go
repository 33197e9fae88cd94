package engine

import "errors"

var (
	// ErrInvalidConfig reports construction parameters the engine cannot run with.
	// No engine is returned alongside it.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrDimensionMismatch reports a sample whose length differs from the configured
	// dimension count. The engine state is left untouched.
	ErrDimensionMismatch = errors.New("sample dimension mismatch")

	// ErrNonFinite reports a sample holding NaN or an infinity. The engine state is
	// left untouched.
	ErrNonFinite = errors.New("sample contains non-finite value")
)
