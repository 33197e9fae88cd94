package stats

// Accumulator holds running mean and variance accumulators for a fixed number of dimensions.
type Accumulator struct {
	mean   []float64
	m2     []float64
	global float64
}

// New creates an Accumulator for n dimensions with all accumulators at zero.
func New(n int) *Accumulator {
	return &Accumulator{
		mean: make([]float64, n),
		m2:   make([]float64, n),
	}
}

// Dims returns the number of dimensions tracked by the accumulator.
func (a *Accumulator) Dims() int {
	return len(a.mean)
}

// Seed treats x as the first sample of the stream: the mean becomes x and
// every variance accumulator returns to zero.
func (a *Accumulator) Seed(x []float64) {
	copy(a.mean, x)
	clear(a.m2)
	a.global = 0
}

// Reset zeroes the means, the per-dimension accumulators and the global accumulator.
func (a *Accumulator) Reset() {
	clear(a.mean)
	clear(a.m2)
	a.global = 0
}

// Observe applies the Welford recurrence to every dimension of x for sample index k.
//
// The caller guarantees k >= 2 and len(x) == Dims().
func (a *Accumulator) Observe(x []float64, k int) {
	for i, v := range x {
		a.ObserveDim(i, v, k)
	}
}

// ObserveDim applies the Welford recurrence to dimension i only.
//
// The M2 term multiplies by the distance from the post-update mean; swapping in the
// pre-update mean changes the accumulated value.
func (a *Accumulator) ObserveDim(i int, v float64, k int) {
	delta := v - a.mean[i]
	a.mean[i] += delta / float64(k)
	a.m2[i] += delta * (v - a.mean[i])
}

// ObserveGlobal updates the running means with x and folds the squared Euclidean
// distance between x and the pre-update mean into the global accumulator.
//
// The distance is scaled by 1/(k-1) before accumulation and is only added when k > 1.
// The per-dimension M2 accumulators are left untouched.
//
// Returns:
//   - float64: squared distance ||x - mean_prev||²
func (a *Accumulator) ObserveGlobal(x []float64, k int) float64 {
	kf := float64(k)
	distSq := 0.0
	for i, v := range x {
		delta := v - a.mean[i]
		a.mean[i] += delta / kf
		distSq += delta * delta
	}

	if k > 1 {
		a.global += distSq / (kf - 1)
	}

	return distSq
}

// MeanAt returns the running mean of dimension i.
func (a *Accumulator) MeanAt(i int) float64 {
	return a.mean[i]
}

// M2At returns the Welford sum of squared deviations of dimension i.
func (a *Accumulator) M2At(i int) float64 {
	return a.m2[i]
}

// Variance returns the normalized variance m2[i]/(k-1), or 0 when k < 2.
func (a *Accumulator) Variance(i, k int) float64 {
	if k < 2 {
		return 0
	}

	return a.m2[i] / float64(k-1)
}

// GlobalVar returns the raw global variance accumulator.
func (a *Accumulator) GlobalVar() float64 {
	return a.global
}

// Mean returns a copy of the running mean vector.
func (a *Accumulator) Mean() []float64 {
	out := make([]float64, len(a.mean))
	copy(out, a.mean)

	return out
}

// M2 returns a copy of the per-dimension sum of squared deviations.
func (a *Accumulator) M2() []float64 {
	out := make([]float64, len(a.m2))
	copy(out, a.m2)

	return out
}

// Restore overwrites the accumulator state. The slices must have length Dims().
// It returns false when the lengths do not match, leaving the state unchanged.
func (a *Accumulator) Restore(mean, m2 []float64, global float64) bool {
	if len(mean) != len(a.mean) || len(m2) != len(a.m2) {
		return false
	}
	copy(a.mean, mean)
	copy(a.m2, m2)
	a.global = global

	return true
}
