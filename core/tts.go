package core

// SynthesisResult is what a speech provider hands back. Providers differ in
// whether they report a sample rate alongside the samples, so the result is one
// of SamplesOnly or SamplesWithRate.
type SynthesisResult interface {
	synthesisResult()
}

// SamplesOnly carries samples without a rate; the caller's configured rate applies.
// Samples holds any numeric slice the provider produced ([]float32, []float64,
// []int16, []any from a decoded JSON array, ...).
type SamplesOnly struct {
	Samples any
}

// SamplesWithRate carries samples and whatever the provider reported as rate.
// Rate is only trusted when it is an integer.
type SamplesWithRate struct {
	Samples any
	Rate    any
}

func (SamplesOnly) synthesisResult()     {}
func (SamplesWithRate) synthesisResult() {}
