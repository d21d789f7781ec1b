package audio

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/beyondboy/shennong/algorithms/common"
	"gonum.org/v1/gonum/floats"
)

// pcmScale is the magnitude of full scale 16-bit PCM
const pcmScale = 32768.0

// Signal is an interleaved multi-channel waveform. Samples are on the 16-bit
// PCM scale, that is within [-32768, 32767], regardless of the bit depth of
// the source. A Signal is never modified after construction.
type Signal struct {
	samples    []float64
	sampleRate int
	channels   int
}

// NewSignal validates samples and wraps them in a Signal. The slice is
// retained and must not be modified afterwards.
func NewSignal(samples []float64, sampleRate, channels int) (*Signal, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("%d samples cannot be split into %d channels", len(samples), channels)
	}
	if !common.AllFinite(samples) {
		return nil, fmt.Errorf("samples must be finite")
	}
	for i, v := range samples {
		if v < -pcmScale || v > pcmScale {
			return nil, fmt.Errorf("sample %d (%g) is outside the 16-bit range", i, v)
		}
	}

	return &Signal{samples: samples, sampleRate: sampleRate, channels: channels}, nil
}

// FromFloat builds a Signal from samples in [-1, 1], scaling them to the
// 16-bit range. Values beyond full scale are clipped.
func FromFloat(samples []float64, sampleRate, channels int) (*Signal, error) {
	scaled := make([]float64, len(samples))
	for i, v := range samples {
		scaled[i] = math.Max(-pcmScale, math.Min(pcmScale-1, v*pcmScale))
	}
	return NewSignal(scaled, sampleRate, channels)
}

// Samples returns the interleaved samples. The slice must not be modified.
func (s *Signal) Samples() []float64 {
	return s.samples
}

// SampleRate returns the sample rate in Hz
func (s *Signal) SampleRate() int {
	return s.sampleRate
}

// Channels returns the number of interleaved channels
func (s *Signal) Channels() int {
	return s.channels
}

// NumFrames returns the number of samples per channel
func (s *Signal) NumFrames() int {
	return len(s.samples) / s.channels
}

// Duration returns the length of the signal in seconds
func (s *Signal) Duration() float64 {
	return float64(s.NumFrames()) / float64(s.sampleRate)
}

// Channel extracts channel index as a mono signal
func (s *Signal) Channel(index int) (*Signal, error) {
	if index < 0 || index >= s.channels {
		return nil, fmt.Errorf("channel %d out of range [0, %d)", index, s.channels)
	}
	if s.channels == 1 {
		return s, nil
	}

	mono := make([]float64, s.NumFrames())
	for i := range mono {
		mono[i] = s.samples[i*s.channels+index]
	}
	return &Signal{samples: mono, sampleRate: s.sampleRate, channels: 1}, nil
}

// Dither returns a copy of the signal with level*U(-1, 1) noise added to
// every sample. A level of 0 returns the signal itself.
func (s *Signal) Dither(level float64, rng *rand.Rand) *Signal {
	if level == 0 {
		return s
	}
	noisy := make([]float64, len(s.samples))
	for i, v := range s.samples {
		noisy[i] = v + level*(2*rng.Float64()-1)
	}
	return &Signal{samples: noisy, sampleRate: s.sampleRate, channels: s.channels}
}

// IsSilent reports whether every sample is zero
func (s *Signal) IsSilent() bool {
	if len(s.samples) == 0 {
		return true
	}
	return floats.Max(s.samples) == 0 && floats.Min(s.samples) == 0
}
