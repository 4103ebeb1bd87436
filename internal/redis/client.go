package redis

import (
	"github.com/redis/go-redis/v9"
)

// NewClient builds the shared go-redis client. The settlement queue is the
// only redis user, so pool sizing stays modest.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     20,
		MinIdleConns: 5,
	})
}
