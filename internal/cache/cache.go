package cache

import (
	"context"
	"time"
)

// BytesCache хранит сериализованные значения с TTL. Ошибки кэша не должны
// ломать основной сценарий: вызывающий код трактует их как промах.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
