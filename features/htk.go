package features

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

// HTKUser is the HTK parameter kind for user defined features
const HTKUser int16 = 9

// htkHeader is the 12 byte big-endian header of an HTK parameter file.
// The sample period is in units of 100ns.
type htkHeader struct {
	NumSamples   int32
	SamplePeriod int32
	SampleSize   int16
	ParmKind     int16
}

// HTKFile is the content of an HTK parameter file
type HTKFile struct {
	Data *mat.Dense
	// SamplePeriod is the frame period in seconds
	SamplePeriod float64
	Kind         int16
}

// SamplePeriod returns the mean spacing of the frame timestamps in seconds,
// or 0 when there are fewer than two frames.
func (f *Features) SamplePeriod() float64 {
	n := len(f.times)
	if n < 2 {
		return 0
	}
	return (f.times[n-1] - f.times[0]) / float64(n-1)
}

// WriteHTK writes features as an HTK USER parameter file with float32
// values.
func WriteHTK(w io.Writer, f *Features) error {
	frames, dim := f.NumFrames(), f.Dim()
	if int64(frames) > math.MaxInt32 || dim*4 > math.MaxInt16 {
		return fmt.Errorf("htk: %d frames of dimension %d do not fit the header", frames, dim)
	}

	bw := bufio.NewWriter(w)
	hdr := htkHeader{
		NumSamples:   int32(frames),
		SamplePeriod: int32(math.Round(f.SamplePeriod() * 1e7)),
		SampleSize:   int16(dim * 4),
		ParmKind:     HTKUser,
	}
	if err := binary.Write(bw, binary.BigEndian, hdr); err != nil {
		return fmt.Errorf("htk: write header: %w", err)
	}

	row := make([]float32, dim)
	for r := range frames {
		for c, v := range f.data.RawRowView(r) {
			row[c] = float32(v)
		}
		if err := binary.Write(bw, binary.BigEndian, row); err != nil {
			return fmt.Errorf("htk: write frame %d: %w", r, err)
		}
	}
	return bw.Flush()
}

// ReadHTK reads an HTK parameter file with float32 values
func ReadHTK(r io.Reader) (*HTKFile, error) {
	br := bufio.NewReader(r)
	var hdr htkHeader
	if err := binary.Read(br, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("htk: read header: %w", err)
	}
	if hdr.NumSamples < 0 || hdr.SampleSize <= 0 || hdr.SampleSize%4 != 0 {
		return nil, fmt.Errorf("htk: invalid header %+v", hdr)
	}

	frames, dim := int(hdr.NumSamples), int(hdr.SampleSize)/4
	values := make([]float32, frames*dim)
	if err := binary.Read(br, binary.BigEndian, values); err != nil {
		return nil, fmt.Errorf("htk: read %d frames: %w", frames, err)
	}

	var data *mat.Dense
	if frames > 0 {
		data = mat.NewDense(frames, dim, nil)
		for i, v := range values {
			data.Set(i/dim, i%dim, float64(v))
		}
	}
	return &HTKFile{
		Data:         data,
		SamplePeriod: float64(hdr.SamplePeriod) / 1e7,
		Kind:         hdr.ParmKind,
	}, nil
}

// SaveHTK writes features to an HTK file at path
func SaveHTK(path string, f *Features) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("htk: %w", err)
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()
	return WriteHTK(file, f)
}

// LoadHTK reads an HTK file at path
func LoadHTK(path string) (h *HTKFile, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("htk: %w", err)
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()
	return ReadHTK(file)
}
