package engine

// Event describes one processed sample as seen by observers.
//
// Every slice is a copy made for the observers of this sample. Changing one does
// not affect the Result returned by Process.
type Event struct {
	// Call is the 1-based external call count, never reset.
	Call uint64
	// Sample is the internal sample counter k the sample was processed at.
	Sample int
	Input  []float64
	// Mean is the running mean after the sample was observed.
	Mean      []float64
	GlobalVar float64
	Outlier   bool
	// Mask holds per-dimension flags in per-dimension mode, nil otherwise.
	Mask      []bool
	Predicted []float64
	Corrected []float64
	// Reset reports that the watchdog fired on this sample.
	Reset bool
}

// Observer is notified after every successfully processed sample.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev Event) {
	f(ev)
}
