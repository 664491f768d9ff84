package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schoolpay/pkg/logger"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("creates JSON logger", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Info("hello")

		entry := decode(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithFormat(logger.FormatText), logger.WithFormat("xml"))
		log.Info("hello")
		assert.Contains(t, buf.String(), "level=INFO")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("config overrides preset", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithEnvironment("development", "schoolpay"),
			logger.WithConfig(logger.Config{Level: "warn", Format: "JSON"}),
			logger.WithOutput(buf),
		)
		log.Info("hidden")
		log.Warn("shown")

		entry := decode(t, buf)
		assert.Equal(t, "shown", entry["msg"])
		assert.Equal(t, "development", entry["env"])
	})

	t.Run("bad level keeps preset", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithConfig(logger.Config{Level: "loud"}), logger.WithOutput(buf))
		log.Debug("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("nop discards", func(t *testing.T) {
		t.Parallel()
		assert.False(t, logger.Nop().Enabled(context.Background(), slog.LevelError))
	})

	t.Run("production preset adds service attrs", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithEnvironment("prod", "schoolpay"), logger.WithOutput(buf))
		log.Debug("hidden")
		log.Info("shown")

		entry := decode(t, buf)
		assert.Equal(t, "schoolpay", entry["service"])
		assert.Equal(t, "production", entry["env"])
		assert.Equal(t, "shown", entry["msg"])
	})

	t.Run("extracts from context", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		type key string
		ctxKey := key("id")
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithContextExtractors(nil, func(ctx context.Context) (slog.Attr, bool) {
				if v, ok := ctx.Value(ctxKey).(string); ok {
					return slog.String("request_id", v), true
				}
				return slog.Attr{}, false
			}),
		)
		log.InfoContext(context.WithValue(context.Background(), ctxKey, "abc"), "with ctx")

		entry := decode(t, buf)
		assert.Equal(t, "abc", entry["request_id"])
	})

	t.Run("domain attributes", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Info("activated",
			logger.Reference("R1"),
			logger.Plan("basic"),
			logger.Amount(50000, "NGN"),
			logger.Error(errors.New("boom")),
			logger.Error(nil),
		)

		entry := decode(t, buf)
		assert.Equal(t, "R1", entry["reference"])
		assert.Equal(t, "basic", entry["plan"])
		assert.Equal(t, map[string]any{"minor": float64(50000), "currency": "NGN"}, entry["amount"])
		assert.Equal(t, "boom", entry["error"])
	})

	t.Run("redacts credentials", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithRedactedKeys("card_pan"))
		log.Info("gateway call",
			slog.String("Signature", "abc123"),
			slog.String("card_pan", "4111"),
			slog.Group("paystack", slog.String("secret_key", "sk_live_x")),
			logger.Reference("R1"),
		)

		entry := decode(t, buf)
		assert.Equal(t, "[REDACTED]", entry["Signature"])
		assert.Equal(t, "[REDACTED]", entry["card_pan"])
		assert.Equal(t, map[string]any{"secret_key": "[REDACTED]"}, entry["paystack"])
		assert.Equal(t, "R1", entry["reference"])
	})

	t.Run("context attrs survive WithGroup", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithContextExtractors(func(context.Context) (slog.Attr, bool) {
				return slog.String("tenant_id", "t-1"), true
			}),
		).With(logger.Component("billing")).WithGroup("req")
		log.Info("claimed", slog.Int("attempt", 1))

		entry := decode(t, buf)
		assert.Equal(t, "billing", entry["component"])
		assert.Equal(t, map[string]any{"attempt": float64(1), "tenant_id": "t-1"}, entry["req"])
	})
}
