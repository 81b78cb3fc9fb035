package database

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestRedisOptions(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Run("defaults", func(t *testing.T) {
		viper.Reset()
		opts := RedisOptions()

		assert.Equal(t, "localhost:6379", opts.Addr)
		assert.Equal(t, 0, opts.DB)
		assert.Equal(t, 10, opts.PoolSize)
		assert.Equal(t, 3*time.Second, opts.DialTimeout)
	})

	t.Run("configured", func(t *testing.T) {
		viper.Reset()
		viper.Set("redis.host", "cache.internal")
		viper.Set("redis.port", "6380")
		viper.Set("redis.password", "secret")
		viper.Set("redis.db", 2)
		viper.Set("redis.pool_size", 25)

		opts := RedisOptions()

		assert.Equal(t, "cache.internal:6380", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 25, opts.PoolSize)
	})
}
