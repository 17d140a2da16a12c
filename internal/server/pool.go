package server

import (
	"database/sql"
	"time"
)

// PoolConfig configura o pool de conexões database/sql
type PoolConfig struct {
	MaxOpenConns    int           // Número máximo de conexões abertas
	MaxIdleConns    int           // Número máximo de conexões ociosas
	ConnMaxLifetime time.Duration // Tempo máximo de vida de uma conexão
	ConnMaxIdleTime time.Duration // Tempo máximo que uma conexão pode ficar ociosa
}

// DefaultPoolConfig returns a pool small enough that many worker processes can
// share one server.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 30 * time.Second,
	}
}

// ConfigurePool configura o pool de conexões do banco
func ConfigurePool(db *sql.DB, config *PoolConfig) {
	if config == nil {
		config = DefaultPoolConfig()
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
}
