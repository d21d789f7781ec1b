package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogger_LevelsAndFields(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := NewDefaultLoggerWithWriters(&stdout, &stderr, false)

	logger.Debug("hidden")
	assert.Empty(t, stdout.String())

	logger.SetLevel(DebugLevel)
	child := logger.WithFields(Fields{"component": "vad", "frames": 3})
	child.Debug("shown")
	assert.Contains(t, stdout.String(), "[DEBUG] shown component=vad frames=3")

	child.Error(errors.New("boom"), "failed")
	assert.Contains(t, stderr.String(), "[ERROR] failed: boom component=vad frames=3")
}

func TestDefaultLogger_WithContext(t *testing.T) {
	var stdout bytes.Buffer
	logger := NewDefaultLoggerWithWriters(&stdout, &stdout, false)

	ctx := ContextWithFields(context.Background(), Fields{"file": "a.wav"})
	ctx = ContextWithFields(ctx, Fields{"job": 2})
	logger.WithContext(ctx).Info("processing")

	assert.Contains(t, stdout.String(), "file=a.wav job=2")

	fields, ok := FieldsFromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, fields)
}

func TestParseLevel(t *testing.T) {
	level, ok := ParseLevel("warn")
	assert.True(t, ok)
	assert.Equal(t, WarnLevel, level)

	level, ok = ParseLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, InfoLevel, level)
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, &NoOpLogger{}, OrNoOp(nil))

	logger := NewDefaultLoggerNoColor()
	assert.Same(t, logger, OrNoOp(logger))
}

func TestLogrusLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})

	logger := NewLogrusLogger(base)
	logger.SetLevel(DebugLevel)
	logger.WithFields(Fields{"component": "pipeline"}).Debug("stage", Fields{"stage": "resampled"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stage", entry["msg"])
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "resampled", entry["stage"])
	assert.Equal(t, "debug", entry["level"])
}
