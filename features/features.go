package features

import (
	"fmt"
	"maps"
	"math"
	"reflect"

	"gonum.org/v1/gonum/mat"
)

// Features holds per-frame feature vectors, the time of each frame in
// seconds and the parameters used to compute them. Features are not
// modified after construction; use Copy to get an independent value.
type Features struct {
	data       *mat.Dense
	times      []float64
	properties map[string]any
}

// New validates and wraps feature data. data has one row per frame and
// times one entry per row.
func New(data *mat.Dense, times []float64, properties map[string]any) (*Features, error) {
	if data == nil {
		return nil, fmt.Errorf("features: nil data")
	}
	rows, _ := data.Dims()
	if len(times) != rows {
		return nil, fmt.Errorf("features: %d timestamps for %d frames", len(times), rows)
	}
	for i, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("features: timestamp %d is not finite", i)
		}
	}
	if properties == nil {
		properties = map[string]any{}
	}
	return &Features{data: data, times: times, properties: properties}, nil
}

// Data returns the (frames x dim) matrix. It must not be modified.
func (f *Features) Data() *mat.Dense {
	return f.data
}

// Times returns the frame timestamps. The slice must not be modified.
func (f *Features) Times() []float64 {
	return f.times
}

// Properties returns a copy of the extraction parameters
func (f *Features) Properties() map[string]any {
	return maps.Clone(f.properties)
}

// Property returns a single extraction parameter
func (f *Features) Property(key string) (any, bool) {
	v, ok := f.properties[key]
	return v, ok
}

// NumFrames returns the number of feature vectors
func (f *Features) NumFrames() int {
	rows, _ := f.data.Dims()
	return rows
}

// Dim returns the dimension of a feature vector
func (f *Features) Dim() int {
	_, cols := f.data.Dims()
	return cols
}

// Copy returns a deep copy
func (f *Features) Copy() *Features {
	return &Features{
		data:       mat.DenseCopyOf(f.data),
		times:      append([]float64(nil), f.times...),
		properties: maps.Clone(f.properties),
	}
}

// IsClose reports whether other has the same shape and properties, and
// data and times equal within atol.
func (f *Features) IsClose(other *Features, atol float64) bool {
	if other == nil || f.NumFrames() != other.NumFrames() || f.Dim() != other.Dim() {
		return false
	}
	if !reflect.DeepEqual(f.properties, other.properties) {
		return false
	}
	for i, t := range f.times {
		if math.Abs(t-other.times[i]) > atol {
			return false
		}
	}
	return mat.EqualApprox(f.data, other.data, atol)
}

// Equal reports whether other holds exactly the same values
func (f *Features) Equal(other *Features) bool {
	return f.IsClose(other, 0)
}
