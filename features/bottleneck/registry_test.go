package bottleneck

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/beyondboy/shennong/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightNames(t *testing.T) {
	assert.Equal(t, []string{"BabelMulti", "FisherMono", "FisherTri"}, WeightNames())
}

func TestAvailableWeights(t *testing.T) {
	dir := t.TempDir()
	_, err := AvailableWeights(dir, nil)
	assert.ErrorContains(t, err, "no weights file found")

	path := filepath.Join(dir, weightFiles["FisherMono"])
	saveArrays(t, path, testArrays())

	var logs bytes.Buffer
	logger := logging.NewDefaultLoggerWithWriters(&logs, &logs, false)
	available, err := AvailableWeights(dir, logger)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"FisherMono": path}, available)
	assert.Contains(t, logs.String(), "BabelMulti")
	assert.Contains(t, logs.String(), "FisherTri")
}

func TestLoadWeights(t *testing.T) {
	dir := t.TempDir()
	saveArrays(t, filepath.Join(dir, weightFiles["FisherTri"]), testArrays())

	b, err := LoadWeights("FisherTri", dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "FisherTri", b.Name)
	assert.Equal(t, 80, b.OutputDim())

	_, err = LoadWeights("BabelMulti", dir, nil)
	assert.ErrorContains(t, err, "not available")

	_, err = LoadWeights("English", dir, nil)
	assert.ErrorContains(t, err, "BabelMulti")
	assert.ErrorContains(t, err, "FisherTri")
}
