package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	ctxlog "github.com/ErlanBelekov/authflow/internal/log"
	"github.com/ErlanBelekov/authflow/internal/reqctx"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return rec
}

func TestContextHandler_AddsRequestAndUserID(t *testing.T) {
	var buf bytes.Buffer
	logger := ctxlog.New(&buf, "production", slog.LevelInfo)

	ctx := reqctx.WithRequestID(context.Background(), "req-1")
	ctx = reqctx.WithUserID(ctx, "user-1")
	logger.InfoContext(ctx, "hello")

	rec := decode(t, &buf)
	if rec["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", rec["request_id"])
	}
	if rec["user_id"] != "user-1" {
		t.Errorf("user_id = %v, want user-1", rec["user_id"])
	}
}

func TestContextHandler_NoContextValues(t *testing.T) {
	var buf bytes.Buffer
	logger := ctxlog.New(&buf, "production", slog.LevelInfo)

	logger.InfoContext(context.Background(), "hello")

	rec := decode(t, &buf)
	if _, ok := rec["request_id"]; ok {
		t.Error("unexpected request_id")
	}
}

func TestContextHandler_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := ctxlog.New(&buf, "production", slog.LevelWarn)

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected nothing logged, got %q", buf.String())
	}
}
