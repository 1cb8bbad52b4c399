package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitRejectsBadLevel(t *testing.T) {
	err := Init(Config{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")
}

func TestInitReplacesLogger(t *testing.T) {
	t.Cleanup(func() { Set(nil) })

	require.NoError(t, Init(Config{Level: "warn", Encoding: "console"}))
	first := Get()
	assert.False(t, first.Core().Enabled(zap.InfoLevel))

	require.NoError(t, Init(Config{Level: "debug"}))
	assert.NotSame(t, first, Get())
	assert.True(t, Get().Core().Enabled(zap.DebugLevel))
}

func TestGetBuildsDefault(t *testing.T) {
	Set(nil)
	t.Cleanup(func() { Set(nil) })

	l := Get()
	require.NotNil(t, l)
	assert.Same(t, l, Get())
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	ctx := NewContext(context.Background(), DatasetKey, "DecayTree")
	ctx = NewContext(ctx, RunIDKey, "r1")
	WithContext(ctx).Info("opened")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "DecayTree", fields[DatasetKey])
	assert.Equal(t, "r1", fields[RunIDKey])
	assert.NotContains(t, fields, FileKey)
}
