package config

import "strings"

type StoreBackend string

const (
	BackendMemory   StoreBackend = "memory"
	BackendRedis    StoreBackend = "redis"
	BackendSQLite   StoreBackend = "sqlite"
	BackendPostgres StoreBackend = "postgres"
	BackendBolt     StoreBackend = "bolt"
)

type StorageConfig interface {
	GetStoreBackend() StoreBackend
	GetRedisURL() string
	GetDatabaseURL() string
	GetBoltPath() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetStoreBackend() StoreBackend {
	return StoreBackend(strings.ToLower(GetEnv("STORE_BACKEND", string(BackendMemory))))
}

func (Storage) GetRedisURL() string {
	return GetEnv("REDIS_URL", "redis://localhost:6379/0")
}

// GetDatabaseURL is a file path / DSN for sqlite or a postgres URL.
func (Storage) GetDatabaseURL() string {
	return GetEnv("DATABASE_URL", "./data/auth.db")
}

func (Storage) GetBoltPath() string {
	return GetEnv("BOLT_PATH", "./data/auth.bolt")
}
