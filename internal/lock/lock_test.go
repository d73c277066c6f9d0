package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopLocker(t *testing.T) {
	release, err := NoopLocker{}.Acquire(context.Background(), "invite:create:1", time.Second)
	require.NoError(t, err)
	release()

	_, err = NoopLocker{}.Acquire(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NoopLocker{}.Acquire(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestRedisLockerWithoutClient(t *testing.T) {
	release, err := NewRedisLocker(nil).Acquire(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrNotConnected)
	release()
}
