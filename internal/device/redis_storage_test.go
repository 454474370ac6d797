package device

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedis 连接 FUNDGATE_TEST_REDIS 指定的 Redis，每个测试使用独立前缀
func setupRedis(t *testing.T) *RedisStorage {
	t.Helper()
	addr := os.Getenv("FUNDGATE_TEST_REDIS")
	if addr == "" {
		t.Skip("FUNDGATE_TEST_REDIS not set")
	}

	ctx := context.Background()
	rdb, err := DialRedis(ctx, addr, 0)
	require.NoError(t, err)

	prefix := "fundgate-test-" + uuid.NewString()
	t.Cleanup(func() {
		iter := rdb.Scan(ctx, 0, prefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			rdb.Del(ctx, iter.Val())
		}
		_ = rdb.Close()
	})
	return NewRedisStorage(rdb, prefix)
}

func TestRedisStorage_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := setupRedis(t)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "a", "1"))
	v, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStorage_TrackerOverNamespace(t *testing.T) {
	ctx := context.Background()
	s := setupRedis(t)

	a := NewTracker(Namespace(s, "dev-a"))
	b := NewTracker(Namespace(s, "dev-b"))
	a.RecordSession(ctx, "0xAAA")

	assert.Equal(t, []string{"0xaaa"}, a.DeviceWallets(ctx))
	assert.Empty(t, b.DeviceWallets(ctx))

	keys, err := Namespace(s, "dev-a").Keys(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{KeyDeviceWallets, KeyWalletSessions}, keys)
}
