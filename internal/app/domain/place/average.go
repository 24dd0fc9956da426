package place

// AverageDecibel returns the arithmetic mean of the measurement values, or nil
// when there are none. No rounding is applied.
func AverageDecibel(measurements []Measurement) *float64 {
	if len(measurements) == 0 {
		return nil
	}
	var total float64
	for _, m := range measurements {
		total += m.Value
	}
	avg := total / float64(len(measurements))
	return &avg
}

// Summarize attaches the derived average to a place. The measurement slice is
// never nil in the result.
func Summarize(p WithMeasurements) Summary {
	measurements := p.Measurements
	if measurements == nil {
		measurements = []Measurement{}
	}
	return Summary{
		Place:          p.Place,
		Measurements:   measurements,
		AverageDecibel: AverageDecibel(measurements),
	}
}
