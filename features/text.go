package features

import (
	"encoding/json"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// document is the serialised form of Features used by the text formats
type document struct {
	Properties map[string]any `json:"properties" yaml:"properties"`
	Times      []float64      `json:"times" yaml:"times"`
	Data       [][]float64    `json:"data" yaml:"data,flow"`
}

func (f *Features) document() document {
	rows := make([][]float64, f.NumFrames())
	for r := range rows {
		rows[r] = mat.Row(nil, r, f.data)
	}
	return document{Properties: f.properties, Times: f.times, Data: rows}
}

func (d document) features() (*Features, error) {
	if len(d.Data) == 0 {
		return nil, fmt.Errorf("features: document holds no frames")
	}
	dim := len(d.Data[0])
	m := mat.NewDense(len(d.Data), dim, nil)
	for r, row := range d.Data {
		if len(row) != dim {
			return nil, fmt.Errorf("features: frame %d has %d values, want %d", r, len(row), dim)
		}
		m.SetRow(r, row)
	}
	return New(m, d.Times, d.Properties)
}

// WriteJSON writes features as a JSON document
func WriteJSON(w io.Writer, f *Features) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(f.document()); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

// ReadJSON reads features written by WriteJSON
func ReadJSON(r io.Reader) (*Features, error) {
	var d document
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return d.features()
}

// WriteYAML writes features as a YAML document
func WriteYAML(w io.Writer, f *Features) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f.document()); err != nil {
		return fmt.Errorf("yaml: %w", err)
	}
	return enc.Close()
}

// ReadYAML reads features written by WriteYAML
func ReadYAML(r io.Reader) (*Features, error) {
	var d document
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return d.features()
}
