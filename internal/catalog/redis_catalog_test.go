package catalog

import (
	"context"
	"os"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestRedis подключается к Redis из REPLAY_TEST_REDIS; без него тест пропускается
func openTestRedis(t *testing.T) *RedisCatalog {
	t.Helper()
	addr := os.Getenv("REPLAY_TEST_REDIS")
	if addr == "" {
		t.Skip("REPLAY_TEST_REDIS не задан")
	}
	c, err := OpenRedis(context.Background(), RedisConfig{Addr: addr, Prefix: "test:" + uuid.NewString() + ":"})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedisCatalog_Keys(t *testing.T) {
	c := NewRedisCatalog(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "")
	defer c.Close()

	assert.Equal(t, "replay:recording:abc", c.recordingKey("abc"))
	assert.Equal(t, "replay:recordings", c.indexKey())
}

func TestRedisCatalog_Closed(t *testing.T) {
	c := NewRedisCatalog(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "x:")
	checkClosed(t, c)
}

func TestRedisCatalog_PutGetList(t *testing.T) {
	checkCatalog(t, openTestRedis(t))
}
