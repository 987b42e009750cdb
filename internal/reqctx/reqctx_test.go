package reqctx_test

import (
	"context"
	"testing"

	"github.com/ErlanBelekov/authflow/internal/reqctx"
	"github.com/google/uuid"
)

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := reqctx.WithRequestID(context.Background(), "req-1")
	if got := reqctx.RequestID(ctx); got != "req-1" {
		t.Errorf("RequestID = %q, want req-1", got)
	}
	if got := reqctx.UserID(ctx); got != "" {
		t.Errorf("UserID = %q, want empty", got)
	}
}

func TestUserID_RoundTrip(t *testing.T) {
	ctx := reqctx.WithUserID(context.Background(), "user-1")
	if got := reqctx.UserID(ctx); got != "user-1" {
		t.Errorf("UserID = %q, want user-1", got)
	}
}

func TestNewRequestID_IsUUID(t *testing.T) {
	if _, err := uuid.Parse(reqctx.NewRequestID()); err != nil {
		t.Errorf("not a uuid: %v", err)
	}
}
