package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "goldshop/internal/core/context"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{zap.New(core).Sugar()}, logs
}

func TestFromContext_AddsOperationAndActor(t *testing.T) {
	log, logs := observed()

	op := appctx.NewOperation("worker", "reconcile")
	ctx := WithLogger(context.Background(), log)
	ctx = appctx.WithOperation(ctx, op)
	ctx = appctx.WithUser(ctx, &appctx.UserContext{Username: "counter-1"})

	Info(ctx, "purchase created", "number", "PUR-2026-00001")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, op.ID, fields["op_id"])
	assert.Equal(t, "worker/reconcile", fields["op"])
	assert.Equal(t, "counter-1", fields["actor"])
	assert.Equal(t, "PUR-2026-00001", fields["number"])
}

func TestFromContext_PlainContext(t *testing.T) {
	log, logs := observed()
	ctx := WithLogger(context.Background(), log)

	Warn(ctx, "payment rejected")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.NotContains(t, entry.ContextMap(), "op_id")
	assert.NotContains(t, entry.ContextMap(), "actor")
}

func TestWithComponent(t *testing.T) {
	log, logs := observed()
	log.WithComponent("outbox").Infow("relayed", "count", 3)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "outbox", logs.All()[0].ContextMap()["component"])
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	log, err := New(Config{Level: "loud", OutputPaths: []string{"stderr"}, Process: "seed"})
	require.NoError(t, err)
	assert.False(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))
}
