package bottleneck

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/beyondboy/shennong/logging"
)

// weightFiles maps the pretrained bundle names to their archive file names
var weightFiles = map[string]string{
	"BabelMulti": "Babel-ML17_FBANK_HL1500_SBN80_PhnStates3096.npz",
	"FisherMono": "FisherEnglish_FBANK_HL500_SBN80_PhnStates120.npz",
	"FisherTri":  "FisherEnglish_FBANK_HL500_SBN80_triphones2423.npz",
}

// WeightNames returns the names of the pretrained bundles, sorted
func WeightNames() []string {
	return slices.Sorted(maps.Keys(weightFiles))
}

// AvailableWeights returns the paths of the pretrained bundles found in dir,
// keyed by name. A missing bundle is logged; finding none is an error.
func AvailableWeights(dir string, logger logging.Logger) (map[string]string, error) {
	logger = logging.OrNoOp(logger)

	available := make(map[string]string, len(weightFiles))
	for _, name := range WeightNames() {
		path := filepath.Join(dir, weightFiles[name])
		info, err := os.Stat(path)
		switch {
		case err == nil && info.Mode().IsRegular():
			available[name] = path
		case err == nil || errors.Is(err, fs.ErrNotExist):
			logger.Warn("weights file not found", logging.Fields{"weights": name, "path": path})
		default:
			return nil, fmt.Errorf("weights %s: %w", name, err)
		}
	}

	if len(available) == 0 {
		return nil, fmt.Errorf("no weights file found in %s", dir)
	}
	return available, nil
}

// LoadWeights loads the named pretrained bundle from dir
func LoadWeights(name, dir string, logger logging.Logger) (*WeightBundle, error) {
	if _, ok := weightFiles[name]; !ok {
		return nil, fmt.Errorf("invalid weights %q, choose in %v", name, WeightNames())
	}

	available, err := AvailableWeights(dir, logger)
	if err != nil {
		return nil, err
	}
	path, ok := available[name]
	if !ok {
		return nil, fmt.Errorf("weights %q not available in %s", name, dir)
	}

	logging.OrNoOp(logger).Debug("loading weights", logging.Fields{"weights": name, "path": path})
	return LoadWeightBundle(path, name)
}
