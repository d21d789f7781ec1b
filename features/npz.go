package features

import (
	"encoding/json"
	"fmt"

	"github.com/beyondboy/shennong/internal/npzio"
	"go.uber.org/multierr"
)

// SaveNPZ writes features to a numpy archive with the arrays "data",
// "times" and "properties" (the JSON encoded properties as bytes).
func SaveNPZ(path string, f *Features) error {
	props, err := json.Marshal(f.properties)
	if err != nil {
		return fmt.Errorf("npz: encode properties: %w", err)
	}
	return npzio.Save(path,
		npzio.Entry{Name: "data", Value: f.data},
		npzio.Entry{Name: "times", Value: f.times},
		npzio.Entry{Name: "properties", Value: bytesToInts(props)},
	)
}

// LoadNPZ reads features written by SaveNPZ. Property values come back as
// decoded by encoding/json.
func LoadNPZ(path string) (f *Features, err error) {
	archive, err := npzio.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, archive.Close())
	}()

	data, err := archive.Matrix("data")
	if err != nil {
		return nil, err
	}
	times, err := archive.Vector("times")
	if err != nil {
		return nil, err
	}

	props := map[string]any{}
	if archive.Has("properties") {
		raw, err := archive.Vector("properties")
		if err != nil {
			return nil, err
		}
		encoded := make([]byte, len(raw))
		for i, v := range raw {
			encoded[i] = byte(v)
		}
		if err := json.Unmarshal(encoded, &props); err != nil {
			return nil, fmt.Errorf("npz: decode properties: %w", err)
		}
	}
	return New(data, times, props)
}

func bytesToInts(b []byte) []int32 {
	out := make([]int32, len(b))
	for i, v := range b {
		out[i] = int32(v)
	}
	return out
}
