package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig - параметры подключения к Redis
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // префикс ключей; по умолчанию "replay:"
}

// RedisCatalog хранит RecordingInfo в Redis: JSON по ключу <prefix>recording:<id>
// и sorted set <prefix>recordings по времени начала. Удобен, когда каталог
// общий для нескольких серверов.
type RedisCatalog struct {
	client  *redis.Client
	prefix  string
	mutex   sync.RWMutex
	isReady bool
}

// OpenRedis подключается к Redis и проверяет соединение
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisCatalog, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis %s: %w", cfg.Addr, err)
	}
	return NewRedisCatalog(rdb, cfg.Prefix), nil
}

// NewRedisCatalog оборачивает готовый клиент
func NewRedisCatalog(client *redis.Client, prefix string) *RedisCatalog {
	if prefix == "" {
		prefix = "replay:"
	}
	return &RedisCatalog{client: client, prefix: prefix, isReady: true}
}

func (c *RedisCatalog) recordingKey(id string) string { return c.prefix + keyPrefix + id }
func (c *RedisCatalog) indexKey() string              { return c.prefix + "recordings" }

// Close закрывает соединение
func (c *RedisCatalog) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.isReady {
		return nil
	}
	c.isReady = false
	return c.client.Close()
}

func (c *RedisCatalog) ready() error {
	if !c.isReady {
		return ErrNotReady
	}
	return nil
}

// Put сохраняет или заменяет сведения о записи
func (c *RedisCatalog) Put(ctx context.Context, info RecordingInfo) error {
	if info.ID == "" {
		return errors.New("catalog: recording ID is empty")
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if err := c.ready(); err != nil {
		return err
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode recording %s: %w", info.ID, err)
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.recordingKey(info.ID), data, 0)
		pipe.ZAdd(ctx, c.indexKey(), &redis.Z{Score: float64(info.StartedAt.UnixNano()), Member: info.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("put recording %s: %w", info.ID, err)
	}
	return nil
}

// Get загружает сведения о записи по ID
func (c *RedisCatalog) Get(ctx context.Context, id string) (RecordingInfo, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if err := c.ready(); err != nil {
		return RecordingInfo{}, err
	}

	data, err := c.client.Get(ctx, c.recordingKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return RecordingInfo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return RecordingInfo{}, fmt.Errorf("get recording %s: %w", id, err)
	}

	var info RecordingInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return RecordingInfo{}, fmt.Errorf("decode recording %s: %w", id, err)
	}
	return info, nil
}

// List возвращает все записи по времени начала
func (c *RedisCatalog) List(ctx context.Context) ([]RecordingInfo, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if err := c.ready(); err != nil {
		return nil, err
	}

	ids, err := c.client.ZRange(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.recordingKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}

	out := make([]RecordingInfo, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// Индекс пережил удалённый ключ
			continue
		}
		var info RecordingInfo
		if err := json.Unmarshal([]byte(s), &info); err != nil {
			return nil, fmt.Errorf("decode recording %s: %w", ids[i], err)
		}
		out = append(out, info)
	}
	return out, nil
}

// Delete удаляет запись из каталога; файл записи не трогает
func (c *RedisCatalog) Delete(ctx context.Context, id string) error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if err := c.ready(); err != nil {
		return err
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.recordingKey(id))
		pipe.ZRem(ctx, c.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete recording %s: %w", id, err)
	}
	return nil
}
