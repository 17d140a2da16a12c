package driver

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig configura o pool de conexões pgx
type PoolConfig struct {
	MaxConns              int32         // Número máximo de conexões no pool
	MinConns              int32         // Número mínimo de conexões no pool
	MaxConnLifetime       time.Duration // Tempo máximo de vida de uma conexão
	MaxConnIdleTime       time.Duration // Tempo máximo que uma conexão pode ficar ociosa
	HealthCheckPeriod     time.Duration // Período entre health checks
	MaxConnLifetimeJitter time.Duration // Jitter para MaxConnLifetime
}

// DefaultPoolConfig returns a small pool sized for a single test process.
// Test databases are dropped while pools may still be open, so idle
// connections are not kept around.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxConns:              4,
		MinConns:              0,
		MaxConnLifetime:       30 * time.Minute,
		MaxConnIdleTime:       30 * time.Second,
		HealthCheckPeriod:     1 * time.Minute,
		MaxConnLifetimeJitter: 5 * time.Second,
	}
}

// ConfigurePgxPool configura um pool pgx com as opções especificadas
func ConfigurePgxPool(config *pgxpool.Config, poolConfig *PoolConfig) error {
	if poolConfig == nil {
		poolConfig = DefaultPoolConfig()
	}

	config.MaxConns = poolConfig.MaxConns
	config.MinConns = poolConfig.MinConns
	config.MaxConnLifetime = poolConfig.MaxConnLifetime
	config.MaxConnIdleTime = poolConfig.MaxConnIdleTime
	config.HealthCheckPeriod = poolConfig.HealthCheckPeriod
	config.MaxConnLifetimeJitter = poolConfig.MaxConnLifetimeJitter

	return nil
}

// NewPgxPoolWithConfig cria um novo pool pgx com configuração customizada.
// database overrides the database named in the URL when not empty.
func NewPgxPoolWithConfig(ctx context.Context, databaseURL, database string, poolConfig *PoolConfig) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	if database != "" {
		config.ConnConfig.Database = database
	}

	if err := ConfigurePgxPool(config, poolConfig); err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
