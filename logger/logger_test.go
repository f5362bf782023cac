package logger_test

import (
	"context"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/ledger-engine/identity"
	"github.com/warp/ledger-engine/logger"
)

func TestWithContext_TagsRequestAndUser(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	ctx = identity.WithUser(ctx, identity.User{ID: "clerk"})

	log.WithComponent("sales").WithContext(ctx).Infow("invoice posted", "invoice", "SI-001")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "sales", fields["component"])
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "clerk", fields["user_id"])
	assert.Equal(t, "SI-001", fields["invoice"])
}

func TestWithContext_BareContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	log.WithContext(context.Background()).Infow("tick")

	require.Equal(t, 1, logs.Len())
	assert.NotContains(t, logs.All()[0].ContextMap(), "request_id")
	assert.NotContains(t, logs.All()[0].ContextMap(), "user_id")
}

func TestNew_FallsBackToInfo(t *testing.T) {
	log, err := logger.New(logger.Config{Level: "chatty", OutputPaths: []string{"stderr"}})

	require.NoError(t, err)
	assert.False(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))
}
