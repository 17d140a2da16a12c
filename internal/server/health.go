package server

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/carlosnayan/prisma-testdb/internal/contextutil"
	"github.com/carlosnayan/prisma-testdb/internal/driver"
)

// HealthCheck represents the result of a health check
type HealthCheck struct {
	Status       string        `json:"status"`          // "healthy", "unhealthy"
	Database     string        `json:"database"`        // Database name
	ResponseTime time.Duration `json:"response_time"`   // Response time
	Error        string        `json:"error,omitempty"` // Error if any
}

// CheckHealth runs a trivial query against an open test database.
func CheckHealth(ctx context.Context, db driver.DB, name string, timeout time.Duration) (*HealthCheck, error) {
	ctx, cancel := contextutil.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var result int
	err := db.QueryRow(ctx, "SELECT 1").Scan(&result)

	check := &HealthCheck{
		Database:     name,
		ResponseTime: time.Since(start),
		Status:       "healthy",
	}
	if err != nil {
		check.Status = "unhealthy"
		check.Error = err.Error()
		return check, err
	}
	return check, nil
}

// PrintHealthCheck prints the health check result in a readable format
func PrintHealthCheck(w io.Writer, check *HealthCheck) {
	fmt.Fprintf(w, "Health Check:\n")
	fmt.Fprintf(w, "  Status: %s\n", check.Status)
	fmt.Fprintf(w, "  Database: %s\n", check.Database)
	fmt.Fprintf(w, "  Response Time: %v\n", check.ResponseTime)
	if check.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", check.Error)
	}
}
