package features

import "fmt"

// Frames converts frame indices to sample boundaries and timestamps for a
// signal sampled at SampleRate. FrameShift and FrameLength are in seconds.
type Frames struct {
	SampleRate  float64
	FrameShift  float64
	FrameLength float64
}

// SamplesPerShift returns the hop between frames in samples, truncated
func (fr Frames) SamplesPerShift() int {
	return int(fr.FrameShift * fr.SampleRate)
}

// SamplesPerFrame returns the frame length in samples, truncated
func (fr Frames) SamplesPerFrame() int {
	return int(fr.FrameLength * fr.SampleRate)
}

// NumFrames returns the number of complete frames over n samples
func (fr Frames) NumFrames(n int) int {
	shift, length := fr.SamplesPerShift(), fr.SamplesPerFrame()
	if shift < 1 || n < length {
		return 0
	}
	return (n-length)/shift + 1
}

// Boundaries returns the [start, end) sample indices of the first n frames
func (fr Frames) Boundaries(n int) [][2]int {
	shift, length := fr.SamplesPerShift(), fr.SamplesPerFrame()
	out := make([][2]int, n)
	for i := range out {
		out[i] = [2]int{i * shift, i*shift + length}
	}
	return out
}

// Times returns the centre of each of the first n frames in seconds
func (fr Frames) Times(n int) ([]float64, error) {
	if fr.SampleRate <= 0 {
		return nil, fmt.Errorf("frames: sample rate must be positive, got %g", fr.SampleRate)
	}
	boundaries := fr.Boundaries(n)
	times := make([]float64, n)
	for i, b := range boundaries {
		times[i] = float64(b[0]+b[1]) / 2 / fr.SampleRate
	}
	return times, nil
}
