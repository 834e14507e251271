package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss возвращается при отсутствии ключа в кеше
var ErrMiss = errors.New("cache: miss")

// Cache определяет минимальный контракт key-value кеша с TTL.
// Реализации должны быть безопасны для конкурентного использования.
type Cache interface {
	// Get возвращает значение по ключу или ErrMiss при его отсутствии
	Get(ctx context.Context, key string) (string, error)

	// Set сохраняет значение с указанным TTL
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del удаляет ключи и возвращает количество удаленных
	Del(ctx context.Context, keys ...string) (int64, error)

	// Ping проверяет доступность кеша
	Ping(ctx context.Context) error

	// Close освобождает ресурсы
	Close() error
}
