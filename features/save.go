package features

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
)

// Format is an on-disk feature format
type Format string

const (
	FormatHTK  Format = "htk"
	FormatNPZ  Format = "npz"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists the supported formats
var Formats = []Format{FormatHTK, FormatNPZ, FormatJSON, FormatYAML}

// ParseFormat maps a format name to its Format
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatHTK, FormatNPZ, FormatJSON:
		return f, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format %q, choose from %v", name, Formats)
	}
}

// Extension returns the file extension for the format, dot included
func (f Format) Extension() string {
	return "." + string(f)
}

// Save writes features to path in the given format
func Save(path string, f *Features, format Format) error {
	switch format {
	case FormatHTK:
		return SaveHTK(path, f)
	case FormatNPZ:
		return SaveNPZ(path, f)
	case FormatJSON:
		return saveText(path, f, WriteJSON)
	case FormatYAML:
		return saveText(path, f, WriteYAML)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func saveText(path string, f *Features, write func(io.Writer, *Features) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()
	return write(file, f)
}
