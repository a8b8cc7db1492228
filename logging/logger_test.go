package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext_fallback(t *testing.T) {
	// A bare context should yield a usable, silent logger.
	l := FromContext(context.Background())
	require.NotNil(t, l)
	l.Infow("should not panic", "k", "v")
}

func TestTrack(t *testing.T) {
	observedZapCore, observedLogs := observer.New(zap.InfoLevel)
	observedLogger := zap.New(observedZapCore)

	ctx := With(context.Background(), &ZapLogger{z: observedLogger.Sugar()})
	Track(ctx, "foo", "bar") // Should be passed on to child logger.

	ctx2 := With(ctx, FromContext(ctx).Named("nested"))
	Track(ctx2, "baz", "bam") // Should not propagate to root logger.

	Info(ctx, "root log")
	Info(ctx2, "nested log")

	require.Equal(t, 2, observedLogs.Len())
	allLogs := observedLogs.All()
	assert.Equal(t, "root log", allLogs[0].Message)
	assert.ElementsMatch(t, []zap.Field{
		zap.String("foo", "bar"),
	}, allLogs[0].Context)

	assert.Equal(t, "nested log", allLogs[1].Message)
	assert.ElementsMatch(t, []zap.Field{
		zap.String("foo", "bar"),
		zap.String("baz", "bam"),
	}, allLogs[1].Context)
}

func TestNamedScopes(t *testing.T) {
	observedZapCore, observedLogs := observer.New(zap.DebugLevel)
	logger := &ZapLogger{z: zap.New(observedZapCore).Sugar()}

	logger.Named("oauth").With("client", "c1").Debugw("code issued")

	require.Equal(t, 1, observedLogs.Len())
	entry := observedLogs.All()[0]
	assert.Equal(t, "oauth", entry.LoggerName)
	assert.ElementsMatch(t, []zap.Field{zap.String("client", "c1")}, entry.Context)
}
