package limits

// Bounds that keep a misconfigured run from exhausting the server or memory

const (
	// MaxWorkers is the largest number of worker databases prepared at once.
	// Each worker holds its own admin DDL and migration connection.
	MaxWorkers = 256

	// MaxMigrationSize is the maximum size in bytes of one migration.sql.
	// Files are read fully into memory and split into statements.
	MaxMigrationSize = 10 * 1024 * 1024 // 10MB

	// MaxMigrations is the maximum number of migration directories read.
	MaxMigrations = 10000
)
