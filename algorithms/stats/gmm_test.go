package stats

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

func column(values ...float64) *mat.Dense {
	return mat.NewDense(len(values), 1, values)
}

func TestIndexPairs(t *testing.T) {
	full := NewIndexPairs(3, false)
	assert.Equal(t, []int{0, 1, 2, 0, 1, 0}, full.Rows)
	assert.Equal(t, []int{0, 1, 2, 1, 2, 2}, full.Cols)
	assert.Equal(t, 6, full.Len())

	diag := NewIndexPairs(3, true)
	assert.Equal(t, []int{0, 1, 2}, diag.Rows)
	assert.Equal(t, []int{0, 1, 2}, diag.Cols)

	// cached tables are shared
	again := NewIndexPairs(3, false)
	assert.Same(t, &full.Rows[0], &again.Rows[0])
}

func TestGMM_SingleGaussianClosedForm(t *testing.T) {
	model, err := Prepare(Params{
		Weights:     []float64{1},
		Means:       column(1),
		Covariances: column(4),
	})
	require.NoError(t, err)

	xs := []float64{-3, 0, 1, 2.5, 10}
	ll, err := model.LogLikelihoods(column(xs...))
	require.NoError(t, err)

	for i, x := range xs {
		want := -0.5*math.Log(2*math.Pi*4) - (x-1)*(x-1)/8
		assert.InDelta(t, want, ll.At(i, 0), 1e-12, "x=%g", x)
	}
}

func TestGMM_TwoComponentsByHand(t *testing.T) {
	weights := []float64{0.3, 0.7}
	means := []float64{0, 2}
	vars := []float64{1, 0.5}
	model, err := Prepare(Params{
		Weights:     weights,
		Means:       column(means...),
		Covariances: column(vars...),
	})
	require.NoError(t, err)

	xs := []float64{-1, 0.5, 1, 3}
	eval, err := model.Evaluate(column(xs...), 0)
	require.NoError(t, err)
	assert.Nil(t, eval.Stats)

	var total float64
	for i, x := range xs {
		var p float64
		for c := range weights {
			p += weights[c] * math.Exp(-(x-means[c])*(x-means[c])/(2*vars[c])) / math.Sqrt(2*math.Pi*vars[c])
		}
		assert.InDelta(t, math.Log(p), eval.FrameLogLikelihoods[i], 1e-12, "x=%g", x)
		total += math.Log(p)
	}
	assert.InDelta(t, total, eval.Total(), 1e-12)

	post, err := model.Posteriors(column(xs...))
	require.NoError(t, err)
	for i := range xs {
		assert.InDelta(t, 1.0, floats.Sum(post.RawRowView(i)), 1e-12)
	}
}

func TestGMM_FullMatchesMultivariateNormal(t *testing.T) {
	mu := []float64{0.5, -1, 2}
	sigma := mat.NewSymDense(3, []float64{
		2.0, 0.3, 0.1,
		0.3, 1.0, -0.2,
		0.1, -0.2, 0.5,
	})

	pairs := NewIndexPairs(3, false)
	packed := mat.NewDense(1, pairs.Len(), nil)
	for p := range pairs.Len() {
		packed.Set(0, p, sigma.At(pairs.Rows[p], pairs.Cols[p]))
	}

	model, err := Prepare(Params{
		Weights:     []float64{1},
		Means:       mat.NewDense(1, 3, mu),
		Covariances: packed,
	})
	require.NoError(t, err)

	normal, ok := distmv.NewNormal(mu, sigma, nil)
	require.True(t, ok)

	data := mat.NewDense(3, 3, []float64{
		0, 0, 0,
		1, -2, 2.5,
		-1, 1, 1,
	})
	ll, err := model.LogLikelihoods(data)
	require.NoError(t, err)
	for i := range 3 {
		assert.InDelta(t, normal.LogProb(data.RawRowView(i)), ll.At(i, 0), 1e-10, "row %d", i)
	}
}

func TestGMM_FullAgreesWithDiagonal(t *testing.T) {
	means := mat.NewDense(2, 2, []float64{0, 1, -1, 3})
	diagCovs := mat.NewDense(2, 2, []float64{1, 2, 0.5, 4})
	fullCovs := mat.NewDense(2, 3, []float64{1, 2, 0, 0.5, 4, 0})
	weights := []float64{0.4, 0.6}

	diag, err := Prepare(Params{Weights: weights, Means: means, Covariances: diagCovs})
	require.NoError(t, err)
	full, err := Prepare(Params{Weights: weights, Means: means, Covariances: fullCovs})
	require.NoError(t, err)

	data := mat.NewDense(4, 2, []float64{0, 0, 1, 1, -2, 3, 0.5, -0.5})
	a, err := diag.LogLikelihoods(data)
	require.NoError(t, err)
	b, err := full.LogLikelihoods(data)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(a, b, 1e-10))

	ea, err := diag.Evaluate(data, 2)
	require.NoError(t, err)
	eb, err := full.Evaluate(data, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, ea.Stats.N, eb.Stats.N, 1e-12)
	assert.True(t, mat.EqualApprox(ea.Stats.F, eb.Stats.F, 1e-10))
	assert.InDelta(t, 4.0, floats.Sum(ea.Stats.N), 1e-12)
}

func TestGMM_EMIsMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := make([]float64, 0, 600)
	for i := range 600 {
		centre := float64(i%3) * 3
		values = append(values, centre+rng.NormFloat64())
	}
	data := column(values...)

	params := Params{
		Weights:     []float64{1.0 / 3, 1.0 / 3, 1.0 / 3},
		Means:       column(-1, 0, 1),
		Covariances: column(1, 1, 1),
	}
	model, err := Prepare(params)
	require.NoError(t, err)

	previous := math.Inf(-1)
	for range 10 {
		eval, err := model.Evaluate(data, 2)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, eval.Total(), previous-1e-9)
		previous = eval.Total()

		params, err = Update(eval.Stats)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, floats.Sum(params.Weights), 1e-12)

		model, err = Prepare(params)
		require.NoError(t, err)
	}
}

func TestGMM_ZeroWeightSentinel(t *testing.T) {
	model, err := Prepare(Params{
		Weights:     []float64{0},
		Means:       column(3),
		Covariances: column(2),
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, model.LogConstants())

	ll, err := model.LogLikelihoods(column(-5, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, mat.Col(nil, 0, ll))
}

func TestGMM_NonPositiveDefinite(t *testing.T) {
	_, err := Prepare(Params{
		Weights:     []float64{0.5, 0.5},
		Means:       column(0, 1),
		Covariances: column(1, -1),
	})
	var npd *NonPositiveDefiniteError
	require.True(t, errors.As(err, &npd))
	assert.Equal(t, 1, npd.Component)

	// correlation above one
	_, err = Prepare(Params{
		Weights:     []float64{1},
		Means:       mat.NewDense(1, 2, []float64{0, 0}),
		Covariances: mat.NewDense(1, 3, []float64{1, 1, 2}),
	})
	assert.ErrorAs(t, err, &npd)
}

func TestUpdate_EmptyComponentFailsPrepare(t *testing.T) {
	stats := &Statistics{
		N:     []float64{2, 0},
		F:     column(4, 0),
		S:     column(10, 0),
		Pairs: NewIndexPairs(1, true),
	}
	params, err := Update(stats)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, params.Weights)
	assert.InDelta(t, 2.0, params.Means.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, params.Covariances.At(0, 0), 1e-12)

	_, err = Prepare(params)
	var npd *NonPositiveDefiniteError
	require.ErrorAs(t, err, &npd)
	assert.Equal(t, 1, npd.Component)

	_, err = Update(&Statistics{N: []float64{1}, F: column(1), Pairs: NewIndexPairs(1, true)})
	assert.Error(t, err)
}

func TestLogSumExp(t *testing.T) {
	assert.InDelta(t, 1000+math.Log(2), LogSumExp([]float64{1000, 1000}), 1e-9)
	assert.Equal(t, math.Inf(-1), LogSumExp([]float64{math.Inf(-1), math.Inf(-1)}))
	assert.Equal(t, math.Inf(1), LogSumExp([]float64{1, math.Inf(1)}))
	assert.Equal(t, math.Inf(-1), LogSumExp(nil))

	rows := LogSumExpRows(mat.NewDense(2, 2, []float64{0, 0, math.Log(3), math.Log(1)}))
	assert.InDeltaSlice(t, []float64{math.Log(2), math.Log(4)}, rows, 1e-12)
}

func TestEvaluate_InvalidInput(t *testing.T) {
	model, err := Prepare(Params{Weights: []float64{1}, Means: column(0), Covariances: column(1)})
	require.NoError(t, err)

	_, err = model.Evaluate(column(1), 3)
	assert.Error(t, err)
	_, err = model.Evaluate(mat.NewDense(1, 2, nil), 1)
	assert.Error(t, err)
}
