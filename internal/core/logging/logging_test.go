package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Format: "json", Writer: &buf})
	require.NoError(t, err)

	logger.Debug("rule validated", slog.String("verdict", "proceed"))
	assert.Contains(t, buf.String(), `"msg":"rule validated"`)
	assert.Contains(t, buf.String(), `"verdict":"proceed"`)
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Writer: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_Rejects(t *testing.T) {
	var buf bytes.Buffer
	_, err := New(Config{Level: "loud", Writer: &buf})
	assert.Error(t, err)

	_, err = New(Config{Format: "xml", Writer: &buf})
	assert.Error(t, err)

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	require.NoError(t, err)

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}
