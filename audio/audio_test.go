package audio

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func writeTestWav(t *testing.T, path string, sampleRate, bitDepth, numChannels int, data []int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	enc := wav.NewEncoder(f, sampleRate, bitDepth, numChannels, 1)
	buf := &goaudio.IntBuffer{
		Data: data,
		Format: &goaudio.Format{
			NumChannels: numChannels,
			SampleRate:  sampleRate,
		},
		SourceBitDepth: bitDepth,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func tone(freq float64, sampleRate int, seconds float64, amplitude float64) []float64 {
	out := make([]float64, int(seconds*float64(sampleRate)))
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func rms(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestNewSignal_Validation(t *testing.T) {
	s, err := NewSignal([]float64{0, 1, -1, 2}, 8000, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, s.NumFrames())
	assert.InDelta(t, 2.0/8000, s.Duration(), 1e-15)

	_, err = NewSignal([]float64{0, 1, 2}, 8000, 2)
	assert.Error(t, err)
	_, err = NewSignal([]float64{0}, 0, 1)
	assert.Error(t, err)
	_, err = NewSignal([]float64{math.NaN()}, 8000, 1)
	assert.Error(t, err)
	_, err = NewSignal([]float64{0, math.Inf(-1)}, 8000, 1)
	assert.ErrorContains(t, err, "finite")
	_, err = NewSignal([]float64{40000}, 8000, 1)
	assert.Error(t, err)
}

func TestFromFloat(t *testing.T) {
	s, err := FromFloat([]float64{0, 0.5, -1, 1}, 16000, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 16384, -32768, 32767}, s.Samples())
}

func TestChannel(t *testing.T) {
	s, err := NewSignal([]float64{1, 10, 2, 20, 3, 30}, 8000, 2)
	require.NoError(t, err)

	right, err := s.Channel(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, right.Samples())
	assert.Equal(t, 1, right.Channels())

	_, err = s.Channel(2)
	assert.Error(t, err)
}

func TestDither(t *testing.T) {
	s, err := NewSignal(make([]float64, 1000), 8000, 1)
	require.NoError(t, err)
	assert.True(t, s.IsSilent())

	a := s.Dither(0.1, rand.New(rand.NewSource(42)))
	b := s.Dither(0.1, rand.New(rand.NewSource(42)))
	assert.Equal(t, a.Samples(), b.Samples())
	assert.False(t, a.IsSilent())
	for _, v := range a.Samples() {
		assert.LessOrEqual(t, math.Abs(v), 0.1)
	}

	assert.Same(t, s, s.Dither(0, nil))
}

func TestResample_LengthAndLevel(t *testing.T) {
	s, err := NewSignal(tone(440, 16000, 1.5, 10000), 16000, 1)
	require.NoError(t, err)

	down, err := s.Resample(8000)
	require.NoError(t, err)
	assert.Equal(t, 8000, down.SampleRate())
	assert.Equal(t, 12000, down.NumFrames())

	// a 440 Hz tone survives the anti-aliasing filter
	middle := down.Samples()[2000:10000]
	assert.InEpsilon(t, 10000/math.Sqrt2, rms(middle), 0.1)

	same, err := down.Resample(8000)
	require.NoError(t, err)
	assert.Same(t, down, same)

	_, err = s.Resample(0)
	assert.Error(t, err)
}

func gaussianPulse(n, center int, sigma, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		d := (float64(i) - float64(center)) / sigma
		out[i] = amplitude * math.Exp(-0.5*d*d)
	}
	return out
}

func TestResample_KeepsTiming(t *testing.T) {
	cases := []struct {
		rate   int
		center int
		sigma  float64
	}{
		{16000, 12000, 8},
		{44100, 33075, 22},
	}
	for _, tc := range cases {
		s, err := NewSignal(gaussianPulse(tc.rate*3/2, tc.center, tc.sigma, 10000), tc.rate, 1)
		require.NoError(t, err)

		down, err := s.Resample(8000)
		require.NoError(t, err)
		assert.InDelta(t, 6000, floats.MaxIdx(down.Samples()), 1, "from %d Hz", tc.rate)
	}
}

func TestResample_ChannelsStaySeparate(t *testing.T) {
	left := tone(440, 16000, 1.5, 10000)
	stereo := make([]float64, 2*len(left))
	for i, v := range left {
		stereo[2*i] = v
	}
	s, err := NewSignal(stereo, 16000, 2)
	require.NoError(t, err)

	down, err := s.Resample(8000)
	require.NoError(t, err)
	require.Equal(t, 2, down.Channels())
	require.Equal(t, 12000, down.NumFrames())

	l, err := down.Channel(0)
	require.NoError(t, err)
	r, err := down.Channel(1)
	require.NoError(t, err)
	assert.InEpsilon(t, 10000/math.Sqrt2, rms(l.Samples()[2000:10000]), 0.1)
	assert.Less(t, rms(r.Samples()), 1.0)
}

func TestIsSilent(t *testing.T) {
	s, err := NewSignal(make([]float64, 10), 8000, 1)
	require.NoError(t, err)
	assert.True(t, s.IsSilent())

	s, err = NewSignal([]float64{0, 0, -1, 0}, 8000, 2)
	require.NoError(t, err)
	assert.False(t, s.IsSilent())

	s, err = NewSignal(nil, 8000, 1)
	require.NoError(t, err)
	assert.True(t, s.IsSilent())
}

func TestWav_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	s, err := NewSignal(tone(300, 8000, 0.5, 12000), 8000, 1)
	require.NoError(t, err)
	require.NoError(t, s.SaveWav(path))

	loaded, err := LoadWav(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, loaded.SampleRate())
	assert.Equal(t, 1, loaded.Channels())
	require.Equal(t, s.NumFrames(), loaded.NumFrames())
	for i, v := range s.Samples() {
		assert.InDelta(t, v, loaded.Samples()[i], 0.5)
	}
}

func TestLoadWav_Rescales24Bit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo24.wav")
	writeTestWav(t, path, 16000, 24, 2, []int{256, -256, 1 << 22, -(1 << 22)})

	loaded, err := LoadWav(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Channels())
	assert.Equal(t, []float64{1, -1, 16384, -16384}, loaded.Samples())
}

func TestLoadWav_Errors(t *testing.T) {
	_, err := LoadWav(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav file at all"), 0o600))
	_, err = LoadWav(path)
	assert.Error(t, err)
}
