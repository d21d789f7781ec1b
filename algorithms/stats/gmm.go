package stats

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var log2Pi = math.Log(2 * math.Pi)

// NonPositiveDefiniteError is returned when a mixture component has a
// covariance that cannot be inverted.
type NonPositiveDefiniteError struct {
	Component int
	Reason    string
}

func (e *NonPositiveDefiniteError) Error() string {
	return fmt.Sprintf("covariance of component %d is not positive definite: %s", e.Component, e.Reason)
}

// IndexPairs lists the (row, column) entries of a D x D covariance that are
// stored per component. Diagonal models store (i, i); full models store the
// upper triangle one diagonal at a time: all (i, i), then (i, i+1), and so on
// up to (0, D-1). Pair tables are shared and must not be modified.
type IndexPairs struct {
	Dim      int
	Diagonal bool
	Rows     []int
	Cols     []int
}

// Len returns the number of stored entries per component
func (p IndexPairs) Len() int {
	return len(p.Rows)
}

type pairsKey struct {
	dim      int
	diagonal bool
}

var pairsCache sync.Map

// NewIndexPairs returns the pairing table for dim-dimensional data.
func NewIndexPairs(dim int, diagonal bool) IndexPairs {
	key := pairsKey{dim: dim, diagonal: diagonal}
	if cached, ok := pairsCache.Load(key); ok {
		return cached.(IndexPairs)
	}

	pairs := IndexPairs{Dim: dim, Diagonal: diagonal}
	if diagonal {
		pairs.Rows = make([]int, dim)
		pairs.Cols = make([]int, dim)
		for i := range dim {
			pairs.Rows[i] = i
			pairs.Cols[i] = i
		}
	} else {
		n := dim * (dim + 1) / 2
		pairs.Rows = make([]int, 0, n)
		pairs.Cols = make([]int, 0, n)
		for offset := range dim {
			for i := 0; i+offset < dim; i++ {
				pairs.Rows = append(pairs.Rows, i)
				pairs.Cols = append(pairs.Cols, i+offset)
			}
		}
	}

	actual, _ := pairsCache.LoadOrStore(key, pairs)
	return actual.(IndexPairs)
}

// Params holds the parameters of a K-component Gaussian mixture over
// D-dimensional data. Covariances is K x D for diagonal models and
// K x D(D+1)/2 for full models, in the IndexPairs order.
type Params struct {
	Weights     []float64
	Means       *mat.Dense
	Covariances *mat.Dense
}

// Model is a mixture prepared for evaluation. It is immutable and safe for
// concurrent use.
type Model struct {
	params      Params
	pairs       IndexPairs
	invCovs     *mat.Dense
	invCovMeans *mat.Dense
	gconsts     []float64
}

// Prepare inverts the component covariances and computes the per-component
// log normalisers. A single component of weight 0 yields a model whose
// log-likelihood is 0 everywhere.
func Prepare(params Params) (*Model, error) {
	if params.Means == nil || params.Covariances == nil {
		return nil, fmt.Errorf("gmm: means and covariances are required")
	}
	k := len(params.Weights)
	meanRows, dim := params.Means.Dims()
	covRows, width := params.Covariances.Dims()
	if k == 0 || dim == 0 || meanRows != k || covRows != k {
		return nil, fmt.Errorf("gmm: %d weights, %d means and %d covariances do not match", k, meanRows, covRows)
	}

	diagonal := width == dim
	if !diagonal && width != dim*(dim+1)/2 {
		return nil, fmt.Errorf("gmm: covariance width %d fits neither diagonal nor full %d-dimensional model", width, dim)
	}
	pairs := NewIndexPairs(dim, diagonal)

	m := &Model{
		params:      params,
		pairs:       pairs,
		invCovs:     mat.NewDense(k, width, nil),
		invCovMeans: mat.NewDense(k, dim, nil),
		gconsts:     make([]float64, k),
	}
	if k == 1 && params.Weights[0] == 0 {
		return m, nil
	}

	mean := make([]float64, dim)
	for c := range k {
		mat.Row(mean, c, params.Means)

		var logDet, quad float64
		var err error
		if diagonal {
			logDet, quad, err = m.prepareDiagonal(c, mean)
		} else {
			logDet, quad, err = m.prepareFull(c, mean)
		}
		if err != nil {
			return nil, err
		}
		m.gconsts[c] = math.Log(params.Weights[c]) - 0.5*(logDet+quad+float64(dim)*log2Pi)
	}
	return m, nil
}

func (m *Model) prepareDiagonal(c int, mean []float64) (logDet, quad float64, err error) {
	for d, mu := range mean {
		v := m.params.Covariances.At(c, d)
		if !(v > 0) || math.IsInf(v, 0) {
			return 0, 0, &NonPositiveDefiniteError{Component: c, Reason: fmt.Sprintf("variance %g in dimension %d", v, d)}
		}
		inv := 1 / v
		m.invCovs.Set(c, d, inv)
		m.invCovMeans.Set(c, d, inv*mu)
		logDet += math.Log(v)
		quad += mu * mu * inv
	}
	return logDet, quad, nil
}

func (m *Model) prepareFull(c int, mean []float64) (logDet, quad float64, err error) {
	dim := len(mean)
	cov := mat.NewSymDense(dim, nil)
	for p := range m.pairs.Len() {
		v := m.params.Covariances.At(c, p)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, &NonPositiveDefiniteError{Component: c, Reason: fmt.Sprintf("non-finite covariance entry %g", v)}
		}
		cov.SetSym(m.pairs.Rows[p], m.pairs.Cols[p], v)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return 0, 0, &NonPositiveDefiniteError{Component: c, Reason: "cholesky factorization failed"}
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return 0, 0, &NonPositiveDefiniteError{Component: c, Reason: err.Error()}
	}

	mu := mat.NewVecDense(dim, mean)
	var invMean mat.VecDense
	invMean.MulVec(&inv, mu)
	m.invCovMeans.SetRow(c, invMean.RawVector().Data)

	for p := range m.pairs.Len() {
		v := inv.At(m.pairs.Rows[p], m.pairs.Cols[p])
		if p >= dim {
			v *= 2
		}
		m.invCovs.Set(c, p, v)
	}
	return chol.LogDet(), mat.Dot(mu, &invMean), nil
}

// Params returns the parameters the model was prepared from
func (m *Model) Params() Params {
	return m.params
}

// Pairs returns the model's index pairing table
func (m *Model) Pairs() IndexPairs {
	return m.pairs
}

// NumComponents returns K
func (m *Model) NumComponents() int {
	return len(m.gconsts)
}

// Dim returns D
func (m *Model) Dim() int {
	return m.pairs.Dim
}

// LogConstants returns a copy of the per-component log normalisers
// (log weight included).
func (m *Model) LogConstants() []float64 {
	return append([]float64(nil), m.gconsts...)
}

// quadratic returns the (T x P) products x_p x_q for every stored pair.
func (m *Model) quadratic(data mat.Matrix) *mat.Dense {
	rows, _ := data.Dims()
	sqr := mat.NewDense(rows, m.pairs.Len(), nil)
	for t := range rows {
		for p := range m.pairs.Len() {
			sqr.Set(t, p, data.At(t, m.pairs.Rows[p])*data.At(t, m.pairs.Cols[p]))
		}
	}
	return sqr
}

func (m *Model) checkData(data mat.Matrix) error {
	if data == nil {
		return fmt.Errorf("gmm: nil data")
	}
	rows, cols := data.Dims()
	if rows == 0 {
		return fmt.Errorf("gmm: no observations")
	}
	if cols != m.pairs.Dim {
		return fmt.Errorf("gmm: data has %d columns, model has dimension %d", cols, m.pairs.Dim)
	}
	return nil
}

func (m *Model) logLikelihoods(data mat.Matrix, sqr *mat.Dense) *mat.Dense {
	var ll, linear mat.Dense
	ll.Mul(sqr, m.invCovs.T())
	ll.Scale(-0.5, &ll)
	linear.Mul(data, m.invCovMeans.T())
	ll.Add(&ll, &linear)

	rows, _ := ll.Dims()
	for t := range rows {
		floats.Add(ll.RawRowView(t), m.gconsts)
	}
	return &ll
}

// LogLikelihoods returns the (T x K) per-component log-likelihoods of data,
// which holds one D-dimensional observation per row.
func (m *Model) LogLikelihoods(data mat.Matrix) (*mat.Dense, error) {
	if err := m.checkData(data); err != nil {
		return nil, err
	}
	return m.logLikelihoods(data, m.quadratic(data)), nil
}

// Posteriors returns the (T x K) component responsibilities of data.
func (m *Model) Posteriors(data mat.Matrix) (*mat.Dense, error) {
	ll, err := m.LogLikelihoods(data)
	if err != nil {
		return nil, err
	}
	normalise(ll, LogSumExpRows(ll))
	return ll, nil
}

// normalise turns log-likelihoods into responsibilities in place.
func normalise(ll *mat.Dense, frame []float64) {
	ll.Apply(func(t, _ int, v float64) float64 {
		return math.Exp(v - frame[t])
	}, ll)
}

// Statistics are the sufficient statistics accumulated over data:
// N (K) occupation counts, F (K x D) first order and S (K x P) second order
// sums in the IndexPairs order.
type Statistics struct {
	N     []float64
	F     *mat.Dense
	S     *mat.Dense
	Pairs IndexPairs
}

// Evaluation is the result of Model.Evaluate
type Evaluation struct {
	// FrameLogLikelihoods holds the log-likelihood of each observation
	FrameLogLikelihoods []float64
	// Stats is nil for order 0
	Stats *Statistics
}

// Total returns the log-likelihood of all observations
func (e *Evaluation) Total() float64 {
	return floats.Sum(e.FrameLogLikelihoods)
}

// Evaluate computes per-frame log-likelihoods and, for order 1 and 2, the
// statistics needed by Update (order 1 leaves S nil).
func (m *Model) Evaluate(data mat.Matrix, order int) (*Evaluation, error) {
	if order < 0 || order > 2 {
		return nil, fmt.Errorf("gmm: statistics order must be 0, 1 or 2, got %d", order)
	}
	if err := m.checkData(data); err != nil {
		return nil, err
	}

	sqr := m.quadratic(data)
	gamma := m.logLikelihoods(data, sqr)
	frame := LogSumExpRows(gamma)
	eval := &Evaluation{FrameLogLikelihoods: frame}
	if order == 0 {
		return eval, nil
	}

	normalise(gamma, frame)
	k := m.NumComponents()
	stats := &Statistics{N: make([]float64, k), Pairs: m.pairs}
	for c := range k {
		stats.N[c] = floats.Sum(mat.Col(nil, c, gamma))
	}

	var f mat.Dense
	f.Mul(gamma.T(), data)
	stats.F = &f
	if order == 2 {
		var s mat.Dense
		s.Mul(gamma.T(), sqr)
		stats.S = &s
	}
	eval.Stats = stats
	return eval, nil
}

// Update re-estimates mixture parameters from second order statistics.
// Components with zero occupation produce NaN parameters, which Prepare
// rejects.
func Update(stats *Statistics) (Params, error) {
	if stats == nil || stats.F == nil || stats.S == nil {
		return Params{}, fmt.Errorf("gmm: update needs zeroth, first and second order statistics")
	}
	k, dim := stats.F.Dims()
	sRows, width := stats.S.Dims()
	if len(stats.N) != k || sRows != k || dim != stats.Pairs.Dim || width != stats.Pairs.Len() {
		return Params{}, fmt.Errorf("gmm: inconsistent statistics shapes")
	}

	total := floats.Sum(stats.N)
	weights := make([]float64, k)
	floats.ScaleTo(weights, 1/total, stats.N)

	means := mat.NewDense(k, dim, nil)
	covs := mat.NewDense(k, width, nil)
	for c := range k {
		n := stats.N[c]
		for d := range dim {
			means.Set(c, d, stats.F.At(c, d)/n)
		}
		for p := range width {
			mr := means.At(c, stats.Pairs.Rows[p])
			mc := means.At(c, stats.Pairs.Cols[p])
			covs.Set(c, p, stats.S.At(c, p)/n-mr*mc)
		}
	}
	return Params{Weights: weights, Means: means, Covariances: covs}, nil
}

// LogSumExp returns log(sum(exp(x))) computed around the maximum. When the
// maximum is not finite it is returned as is. An empty slice gives -Inf.
func LogSumExp(x []float64) float64 {
	if len(x) == 0 {
		return math.Inf(-1)
	}
	if peak := floats.Max(x); math.IsNaN(peak) || math.IsInf(peak, 0) {
		return peak
	}
	return floats.LogSumExp(x)
}

// LogSumExpRows applies LogSumExp to every row of m.
func LogSumExpRows(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	out := make([]float64, rows)
	row := make([]float64, cols)
	for r := range rows {
		mat.Row(row, r, m)
		out[r] = LogSumExp(row)
	}
	return out
}
