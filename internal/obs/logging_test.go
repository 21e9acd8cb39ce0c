package obs

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLevel(t *testing.T) {
	InitLogger()
	ctx := context.Background()
	assert.False(t, Logger.Enabled(ctx, slog.LevelDebug))

	SetLevel("debug")
	assert.True(t, Logger.Enabled(ctx, slog.LevelDebug))

	SetLevel("ERROR")
	assert.False(t, Logger.Enabled(ctx, slog.LevelWarn))

	SetLevel("bogus")
	assert.True(t, Logger.Enabled(ctx, slog.LevelInfo))
	assert.False(t, Logger.Enabled(ctx, slog.LevelDebug))
}

func TestInitLoggerKeepsLogger(t *testing.T) {
	InitLogger()
	first := Logger
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			Logger.Debug("concurrent_log")
		}
	}()
	InitLogger()
	<-done
	assert.Same(t, first, Logger)
	assert.True(t, Logger.Enabled(context.Background(), slog.LevelInfo))
}
