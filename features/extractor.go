package features

import (
	"github.com/beyondboy/shennong/audio"
)

// Extractor defines the interface for feature extraction from a signal
type Extractor interface {
	Process(signal *audio.Signal) (*Features, error)
	// Parameters returns the values recorded in the Features properties
	Parameters() map[string]any
}
