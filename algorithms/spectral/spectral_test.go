package spectral

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func speechFilterbank(t *testing.T, lowFreq float64) *MelFilterbank {
	t.Helper()
	fb, err := NewMelFilterbank(MelFilterbankParams{
		WindowLength: 200,
		SampleRate:   8000,
		NumBands:     24,
		LowFreq:      lowFreq,
		HighFreq:     3800,
	})
	require.NoError(t, err)
	return fb
}

func TestMelScale_RoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 64, 700, 3800, 8000} {
		assert.InDelta(t, hz, MelToHz(HzToMel(hz)), 1e-9)
	}
	assert.InDelta(t, 1127*math.Log(2), HzToMel(700), 1e-12)
}

func TestFFTSize(t *testing.T) {
	assert.Equal(t, 256, FFTSize(200))
	assert.Equal(t, 512, FFTSize(512))
	assert.Equal(t, 300, FFTSize(-300))
}

func TestMelFilterbank_Shape(t *testing.T) {
	fb := speechFilterbank(t, 64)
	rows, cols := fb.Weights().Dims()
	assert.Equal(t, 129, rows)
	assert.Equal(t, 24, cols)
	assert.Equal(t, 256, fb.NFFT())
	assert.Equal(t, 24, fb.NumBands())
}

func TestMelFilterbank_BinsInAdjacentBands(t *testing.T) {
	fb := speechFilterbank(t, 64)
	w := fb.Weights()
	rows, cols := w.Dims()

	for k := range rows {
		var nonZero []int
		for b := range cols {
			v := w.At(k, b)
			assert.GreaterOrEqual(t, v, 0.0, "bin %d band %d", k, b)
			assert.LessOrEqual(t, v, 1.0+1e-12, "bin %d band %d", k, b)
			if v > 0 {
				nonZero = append(nonZero, b)
			}
		}
		require.LessOrEqual(t, len(nonZero), 2, "bin %d", k)
		if len(nonZero) == 2 {
			assert.Equal(t, nonZero[0]+1, nonZero[1], "bin %d", k)
			// rising and falling edges of neighbouring bands overlap exactly
			assert.InDelta(t, 1.0, floats.Sum(mat.Row(nil, k, w)), 1e-9, "bin %d", k)
		}
	}

	for b := range cols {
		assert.Greater(t, floats.Sum(mat.Col(nil, b, w)), 0.0, "band %d is empty", b)
	}
}

func TestMelFilterbank_HTKLowBinZeroed(t *testing.T) {
	// 80 Hz at 8 kHz with nfft 256 sits at bin 2.56, so bin 3 is dropped
	fb := speechFilterbank(t, 80)
	w := fb.Weights()
	_, cols := w.Dims()
	for b := range cols {
		assert.Zero(t, w.At(3, b))
	}
	assert.Greater(t, w.At(4, 0), 0.0)

	// 64 Hz sits at bin 2.05 and keeps bin 3
	assert.Greater(t, speechFilterbank(t, 64).Weights().At(3, 0), 0.0)
}

func TestMelFilterbank_InvalidParams(t *testing.T) {
	cases := []MelFilterbankParams{
		{WindowLength: 200, SampleRate: 0, NumBands: 24},
		{WindowLength: 200, SampleRate: 8000, NumBands: 0},
		{WindowLength: 200, SampleRate: 8000, NumBands: 24, LowFreq: 3000, HighFreq: 2000},
		{WindowLength: 200, SampleRate: 8000, NumBands: 24, HighFreq: 5000},
		{WindowLength: 0, SampleRate: 8000, NumBands: 24},
	}
	for _, p := range cases {
		_, err := NewMelFilterbank(p)
		assert.Error(t, err, "%+v", p)
	}

	fb, err := NewMelFilterbank(DefaultMelFilterbankParams(400, 16000))
	require.NoError(t, err)
	assert.Equal(t, 8000.0, fb.Params().HighFreq)
	assert.Equal(t, 20, fb.NumBands())
}

func TestFFT_PowerSpectrumMatchesDFT(t *testing.T) {
	frame := []float64{1, -2, 0.5, 3, 0, 1}
	f := NewFFT(8)
	got := make([]float64, 5)
	require.NoError(t, f.PowerSpectrum(got, frame))

	for k := range got {
		var re, im float64
		for n, x := range frame {
			angle := -2 * math.Pi * float64(k*n) / 8
			re += x * math.Cos(angle)
			im += x * math.Sin(angle)
		}
		assert.InDelta(t, re*re+im*im, got[k], 1e-9, "bin %d", k)
	}

	assert.Error(t, f.PowerSpectrum(got, make([]float64, 9)))
	assert.Error(t, f.PowerSpectrum(make([]float64, 4), frame))
}

func TestLogMelFrontend_Silence(t *testing.T) {
	lm, err := NewLogMelFrontend(200, 120, speechFilterbank(t, 64))
	require.NoError(t, err)

	out, err := lm.Compute(make([]float64, 8000))
	require.NoError(t, err)

	rows, cols := out.Dims()
	assert.Equal(t, 98, rows)
	assert.Equal(t, 24, cols)
	assert.Zero(t, mat.Max(out))
	assert.Zero(t, mat.Min(out))
}

func TestLogMelFrontend_TonePeaksInMatchingBand(t *testing.T) {
	fb := speechFilterbank(t, 64)
	lm, err := NewLogMelFrontend(200, 120, fb)
	require.NoError(t, err)

	signal := make([]float64, 4000)
	for i := range signal {
		signal[i] = 10000 * math.Sin(2*math.Pi*1000*float64(i)/8000)
	}
	out, err := lm.Compute(signal)
	require.NoError(t, err)

	// the band with the largest weight on the 1 kHz bin (bin 32)
	want := floats.MaxIdx(mat.Row(nil, 32, fb.Weights()))
	for r := range 5 {
		assert.Equal(t, want, floats.MaxIdx(out.RawRowView(r)), "frame %d", r)
	}
}

func TestLogMelFrontend_Errors(t *testing.T) {
	fb := speechFilterbank(t, 64)

	_, err := NewLogMelFrontend(512, 120, fb)
	assert.Error(t, err)
	_, err = NewLogMelFrontend(200, 200, fb)
	assert.Error(t, err)

	lm, err := NewLogMelFrontend(200, 120, fb)
	require.NoError(t, err)
	_, err = lm.Compute(make([]float64, 100))
	assert.Error(t, err)
}
