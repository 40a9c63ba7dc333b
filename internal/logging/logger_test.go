package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Run("valid json logger", func(t *testing.T) {
		l, err := New("info", "json")
		require.NoError(t, err)
		assert.NotNil(t, l)
	})

	t.Run("valid console logger", func(t *testing.T) {
		l, err := New("debug", "console")
		require.NoError(t, err)
		assert.NotNil(t, l)
	})

	t.Run("bad level", func(t *testing.T) {
		_, err := New("loud", "json")
		assert.Error(t, err)
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := New("info", "xml")
		assert.Error(t, err)
	})
}

func TestContextFieldsOnEveryLine(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := FromZap(zap.New(core))

	ctx := WithSessionID(context.Background(), "sess-1")
	ctx = WithRequestID(ctx, "req-9")

	l.Info(ctx, "queue advanced", zap.Int("cursor", 2))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "sess-1", fields["session.id"])
	assert.Equal(t, "req-9", fields["request.id"])
	assert.Equal(t, int64(2), fields["cursor"])
}

func TestContextFieldsEmptyContext(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestSessionIDRoundTrip(t *testing.T) {
	ctx := WithSessionID(context.Background(), "sess-42")
	assert.Equal(t, "sess-42", SessionIDFromContext(ctx))
	assert.Equal(t, "", SessionIDFromContext(context.Background()))
}

func TestWithAndNamed(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := FromZap(zap.New(core)).Named("review").With(zap.String("component", "engine"))

	l.Info(context.Background(), "hello")
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "review", entries[0].LoggerName)
	assert.Equal(t, "engine", entries[0].ContextMap()["component"])
}
