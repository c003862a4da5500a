package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/formiko/flagsh/internal/flag"
	"github.com/formiko/flagsh/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string // Адрес Redis сервера
	Password  string // Пароль (пустой если не требуется)
	DB        int    // Номер базы данных
	KeyPrefix string // Префикс ключа хеша с флагами
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "flagsh:",
	}
}

// RedisStore хранит все флаги в одном хеше Redis: поле - ключ флага, значение - JSON
type RedisStore struct {
	client  *redis.Client
	hashKey string
}

// NewRedisStore подключается к Redis и проверяет соединение
func NewRedisStore(ctx context.Context, config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetStorageLogger().Info("🔴 Connected to Redis at %s", config.Addr)
	return &RedisStore{client: client, hashKey: config.KeyPrefix + "flags"}, nil
}

// Put сохраняет состояние флага
func (rs *RedisStore) Put(ctx context.Context, st flag.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal flag: %w", err)
	}
	if err := rs.client.HSet(ctx, rs.hashKey, st.Key(), data).Err(); err != nil {
		return fmt.Errorf("failed to save flag %s: %w", st.Key(), err)
	}
	return nil
}

// Delete удаляет флаг
func (rs *RedisStore) Delete(ctx context.Context, key string) error {
	if err := rs.client.HDel(ctx, rs.hashKey, key).Err(); err != nil {
		return fmt.Errorf("failed to delete flag %s: %w", key, err)
	}
	return nil
}

// List читает все флаги из хеша
func (rs *RedisStore) List(ctx context.Context) ([]flag.State, error) {
	entries, err := rs.client.HGetAll(ctx, rs.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}

	states := make([]flag.State, 0, len(entries))
	for key, data := range entries {
		var st flag.State
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			logging.GetStorageLogger().Warn("⚠️ Failed to unmarshal flag %s: %v", key, err)
			continue
		}
		states = append(states, st)
	}

	sortStates(states)
	return states, nil
}

// Close закрывает соединение с Redis
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
