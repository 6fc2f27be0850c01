package records

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/profilekeeper/internal/logging"
)

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "accounts:u-1", channelFor("u-1"))
}

func TestNewRedisNotifier_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisNotifier(ctx, "127.0.0.1:1", logging.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestRedisNotifier_CloseNil(t *testing.T) {
	var n *RedisNotifier
	assert.NoError(t, n.Close())
}
