package context

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestActorIgnoresEmptyValues(t *testing.T) {
	base := context.Background()
	assert.Equal(t, base, WithActor(base, "", ""))

	kind, id := ActorFromContext(WithActor(base, "account", "42"))
	assert.Equal(t, "account", kind)
	assert.Equal(t, "42", id)
}

func TestNewRequestIDIsULID(t *testing.T) {
	first := NewRequestID()
	second := NewRequestID()
	assert.NotEqual(t, first, second)

	parsed, err := ulid.ParseStrict(first)
	require.NoError(t, err)
	assert.Equal(t, first, parsed.String())
}
