package engine

// Record is the history entry of one processed sample.
type Record struct {
	Outlier   bool
	Reset     bool
	Predicted []float64
	Corrected []float64
}

// History is the append-only log of processed samples.
//
// The engine appends to it; callers get read-only access through the accessor
// methods, which return copies.
type History struct {
	records  []Record
	outliers int
	resets   int
}

func (h *History) append(rec Record) {
	h.records = append(h.records, rec)
	if rec.Outlier {
		h.outliers++
	}
	if rec.Reset {
		h.resets++
	}
}

// Len returns the number of recorded samples.
func (h *History) Len() int {
	return len(h.records)
}

// At returns a copy of record i. It panics if i is out of range.
func (h *History) At(i int) Record {
	rec := h.records[i]

	return Record{
		Outlier:   rec.Outlier,
		Reset:     rec.Reset,
		Predicted: append([]float64(nil), rec.Predicted...),
		Corrected: append([]float64(nil), rec.Corrected...),
	}
}

// Flags returns the outlier flag of every recorded sample.
func (h *History) Flags() []bool {
	out := make([]bool, len(h.records))
	for i, rec := range h.records {
		out[i] = rec.Outlier
	}

	return out
}

// Predictions returns a copy of every recorded prediction vector.
func (h *History) Predictions() [][]float64 {
	out := make([][]float64, len(h.records))
	for i, rec := range h.records {
		out[i] = append([]float64(nil), rec.Predicted...)
	}

	return out
}

// Corrected returns a copy of every recorded corrected vector.
func (h *History) Corrected() [][]float64 {
	out := make([][]float64, len(h.records))
	for i, rec := range h.records {
		out[i] = append([]float64(nil), rec.Corrected...)
	}

	return out
}

// OutlierCount returns how many recorded samples were flagged.
func (h *History) OutlierCount() int {
	return h.outliers
}

// ResetCount returns how many recorded samples fired the watchdog.
func (h *History) ResetCount() int {
	return h.resets
}
