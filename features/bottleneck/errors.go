package bottleneck

import "fmt"

// NoVoiceDetectedError is returned when voice activity detection finds no
// voiced frame in the signal.
type NoVoiceDetectedError struct {
	Total int
}

func (e *NoVoiceDetectedError) Error() string {
	return fmt.Sprintf("no voice detected in signal (0 voiced frames out of %d), failed to extract features", e.Total)
}

// InvalidWeightBundleError reports a missing or malformed array in a weight
// bundle.
type InvalidWeightBundleError struct {
	Path    string
	Key     string
	Message string
	Cause   error
}

func (e *InvalidWeightBundleError) Error() string {
	msg := "invalid weight bundle"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" (key %q)", e.Key)
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *InvalidWeightBundleError) Unwrap() error {
	return e.Cause
}

// TimingError is returned when the computed timestamps do not span the
// input duration: times[n-2] <= duration <= times[n-1] must hold.
type TimingError struct {
	Duration     float64
	SecondToLast float64
	Last         float64
}

func (e *TimingError) Error() string {
	return fmt.Sprintf("timestamps do not match signal duration %gs: last frames at %gs and %gs",
		e.Duration, e.SecondToLast, e.Last)
}
