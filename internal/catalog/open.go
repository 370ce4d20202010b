package catalog

import (
	"context"
	"fmt"
)

// Хранилища каталога записей
const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendMaria  = "maria"
)

// Settings описывает выбранное хранилище и параметры всех поддерживаемых
type Settings struct {
	Backend    string
	BadgerPath string // пустой путь - в памяти
	Redis      RedisConfig
	Mongo      MongoConfig
	Maria      MariaConfig
}

// Open открывает каталог по Settings.Backend
func Open(ctx context.Context, s Settings) (Catalog, error) {
	switch s.Backend {
	case BackendBadger, "":
		return OpenBadger(s.BadgerPath)
	case BackendRedis:
		return OpenRedis(ctx, s.Redis)
	case BackendMongo:
		return OpenMongo(ctx, s.Mongo)
	case BackendMaria:
		return OpenMaria(ctx, s.Maria)
	default:
		return nil, fmt.Errorf("catalog: unknown backend %q", s.Backend)
	}
}
