// Package cache хранит счетчики сервиса в Redis или в памяти процесса
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// KeyPrefix префикс всех ключей сервиса
	KeyPrefix = "vizlab:"
	// SignalsServedKey счетчик отданных сигналов
	SignalsServedKey = KeyPrefix + "signals:served"
	// RatiosComputedKey счетчик вычисленных отношений
	RatiosComputedKey = KeyPrefix + "ratios:computed"
	// ReloadsKey счетчик перестроений реестра
	ReloadsKey = KeyPrefix + "reloads:total"
)

// Counters хранилище счетчиков
type Counters interface {
	IncrementCounter(key string) (int64, error)
	GetCounter(key string) (int64, error)
}

// RedisCache реализует счетчики в Redis
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisCache создает новое подключение к Redis
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx := context.Background()

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ctx:    ctx,
	}, nil
}

// IncrementCounter увеличивает счетчик
func (r *RedisCache) IncrementCounter(key string) (int64, error) {
	return r.client.Incr(r.ctx, key).Result()
}

// GetCounter возвращает значение счетчика
func (r *RedisCache) GetCounter(key string) (int64, error) {
	val, err := r.client.Get(r.ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping() error {
	return r.client.Ping(r.ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}
