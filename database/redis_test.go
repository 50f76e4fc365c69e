package database

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient("redis://" + mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	assert.NotNil(t, client)
}

func TestNewRedisClientInvalidURL(t *testing.T) {
	_, err := NewRedisClient("invalid://url")
	assert.Error(t, err)
}

func TestNewPostgresDBRequiresDSN(t *testing.T) {
	_, err := NewPostgresDB("", nil)
	assert.Error(t, err)
}
