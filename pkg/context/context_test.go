package ctxutil

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewContextWithRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/auth/me", nil)
	req.Header.Set("X-Request-ID", "req-123")
	req.Header.Set("User-Agent", "unit-test")

	ctx := NewContextWithRequest(context.Background(), req, "handler", "Me")

	assert.Equal(t, "req-123", GetRequestID(ctx))
	assert.Equal(t, "unit-test", GetUserAgent(ctx))
	assert.Equal(t, "handler", GetModule(ctx))
	assert.Equal(t, "Me", GetFunction(ctx))
	assert.False(t, GetStartTime(ctx).IsZero())
}

func TestNewContextWithRequestKeepsExistingRequestID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "from-header")

	ctx := WithRequestID(context.Background(), "from-middleware")
	ctx = NewContextWithRequest(ctx, req, "handler", "Login")

	assert.Equal(t, "from-middleware", GetRequestID(ctx))
}

func TestGetUserID(t *testing.T) {
	_, ok := GetUserID(context.Background())
	assert.False(t, ok)

	id, ok := GetUserID(WithUserID(context.Background(), 42))
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)
}
