package database

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// RedisOptions builds client options from the redis.* keys. The blacklist,
// QR requests and event list are all small, so the pool stays modest.
func RedisOptions() *redis.Options {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.dial_timeout", "3s")

	return &redis.Options{
		Addr:        net.JoinHostPort(viper.GetString("redis.host"), viper.GetString("redis.port")),
		Password:    viper.GetString("redis.password"),
		DB:          viper.GetInt("redis.db"),
		PoolSize:    viper.GetInt("redis.pool_size"),
		DialTimeout: viper.GetDuration("redis.dial_timeout"),
	}
}

// InitRedis connects to Redis. Without it logout revocation, QR payment
// requests and event publication are unavailable, but transfers still work,
// so a failed ping returns nil instead of exiting.
func InitRedis() *redis.Client {
	opts := RedisOptions()
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout+time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("[REDIS] %s unreachable, token revocation and QR requests disabled: %v", opts.Addr, err)
		rdb.Close()
		return nil
	}

	log.Printf("[REDIS] Connected to %s (db %d)", opts.Addr, opts.DB)
	return rdb
}
