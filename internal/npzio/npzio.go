// Package npzio reads and writes numpy .npz archives of gonum matrices.
package npzio

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sbinet/npyio/npz"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

const npySuffix = ".npy"

// Archive is an open .npz file
type Archive struct {
	path   string
	reader *npz.Reader
	keys   []string
}

// Open opens the archive at path
func Open(path string) (*Archive, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open npz archive %s: %w", path, err)
	}

	keys := make([]string, 0, len(r.Keys()))
	for _, k := range r.Keys() {
		keys = append(keys, strings.TrimSuffix(k, npySuffix))
	}
	slices.Sort(keys)
	return &Archive{path: path, reader: r, keys: keys}, nil
}

// Keys returns the sorted array names, without the .npy suffix
func (a *Archive) Keys() []string {
	return slices.Clone(a.keys)
}

// Has reports whether the archive holds an array called name
func (a *Archive) Has(name string) bool {
	_, found := slices.BinarySearch(a.keys, name)
	return found
}

// Shape returns the shape of the named array
func (a *Archive) Shape(name string) ([]int, error) {
	if !a.Has(name) {
		return nil, fmt.Errorf("%s: no array %q", a.path, name)
	}
	hdr := a.reader.Header(name + npySuffix)
	if hdr == nil {
		return nil, fmt.Errorf("%s: no header for array %q", a.path, name)
	}
	return slices.Clone(hdr.Descr.Shape), nil
}

// Values reads the named array as float64 in storage order, along with its
// shape and whether the storage order is column-major.
func (a *Archive) Values(name string) (values []float64, shape []int, fortran bool, err error) {
	if !a.Has(name) {
		return nil, nil, false, fmt.Errorf("%s: no array %q", a.path, name)
	}
	key := name + npySuffix
	hdr := a.reader.Header(key)
	if hdr == nil {
		return nil, nil, false, fmt.Errorf("%s: no header for array %q", a.path, name)
	}

	switch dtype := strings.TrimLeft(hdr.Descr.Type, "<>|="); dtype {
	case "f8":
		err = a.reader.Read(key, &values)
	case "f4":
		var raw []float32
		err = a.reader.Read(key, &raw)
		values = widen(raw)
	case "i8":
		var raw []int64
		err = a.reader.Read(key, &raw)
		values = widen(raw)
	case "i4":
		var raw []int32
		err = a.reader.Read(key, &raw)
		values = widen(raw)
	default:
		return nil, nil, false, fmt.Errorf("%s: array %q has unsupported dtype %q", a.path, name, hdr.Descr.Type)
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("%s: read array %q: %w", a.path, name, err)
	}
	return values, slices.Clone(hdr.Descr.Shape), hdr.Descr.Fortran, nil
}

func widen[T float32 | int32 | int64](raw []T) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}
	return out
}

// Matrix reads a 2-d array into a row-major matrix. A 1-d array of n values
// is returned as a 1 x n row vector.
func (a *Archive) Matrix(name string) (*mat.Dense, error) {
	values, shape, fortran, err := a.Values(name)
	if err != nil {
		return nil, err
	}

	var rows, cols int
	switch len(shape) {
	case 1:
		rows, cols = 1, shape[0]
	case 2:
		rows, cols = shape[0], shape[1]
	default:
		return nil, fmt.Errorf("%s: array %q has %d dimensions, want 1 or 2", a.path, name, len(shape))
	}
	if rows*cols != len(values) || rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%s: array %q with shape %v holds %d values", a.path, name, shape, len(values))
	}

	if fortran && rows > 1 && cols > 1 {
		colMajor := mat.NewDense(cols, rows, values)
		return mat.DenseCopyOf(colMajor.T()), nil
	}
	return mat.NewDense(rows, cols, values), nil
}

// Vector reads a 1-d array, or a 2-d array with a single row or column.
func (a *Archive) Vector(name string) ([]float64, error) {
	values, shape, _, err := a.Values(name)
	if err != nil {
		return nil, err
	}
	if len(shape) == 2 && shape[0] != 1 && shape[1] != 1 {
		return nil, fmt.Errorf("%s: array %q with shape %v is not a vector", a.path, name, shape)
	}
	if len(shape) > 2 {
		return nil, fmt.Errorf("%s: array %q has %d dimensions, want a vector", a.path, name, len(shape))
	}
	return values, nil
}

// Scalar reads an array holding exactly one value
func (a *Archive) Scalar(name string) (float64, error) {
	values, shape, _, err := a.Values(name)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("%s: array %q with shape %v is not a scalar", a.path, name, shape)
	}
	return values[0], nil
}

// Close releases the archive
func (a *Archive) Close() error {
	return a.reader.Close()
}

// Entry is a named array to be written by Save.
type Entry struct {
	Name  string
	Value any
}

// Save writes entries to a new archive at path. Values may be gonum
// matrices, slices or scalars of numeric types.
func Save(path string, entries ...Entry) (err error) {
	w, err := npz.Create(path)
	if err != nil {
		return fmt.Errorf("create npz archive %s: %w", path, err)
	}
	defer func() {
		err = multierr.Append(err, w.Close())
	}()

	for _, e := range entries {
		value := e.Value
		if m, ok := value.(mat.Matrix); ok {
			value = mat.DenseCopyOf(m)
		}
		if err := w.Write(e.Name+npySuffix, value); err != nil {
			return fmt.Errorf("write array %q to %s: %w", e.Name, path, err)
		}
	}
	return nil
}
