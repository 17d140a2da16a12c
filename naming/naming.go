// Package naming derives test database names.
//
// A test run uses one base name (for example "test_app"). When tests run in
// several parallel worker processes, each worker appends its own token so
// that no two workers share a database:
//
//	naming.ResolveName("test_app", nil)  // "test_app"
//	w := 1
//	naming.ResolveName("test_app", &w)   // "test_app_gw1"
package naming

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	tderrors "github.com/carlosnayan/prisma-testdb/internal/errors"
)

const (
	// DefaultPrefix is prepended to the configured database name.
	DefaultPrefix = "test_"

	// WorkerEnvVar carries the worker token ("gw0", "gw1", ...) of a parallel worker process.
	WorkerEnvVar = "TESTDB_WORKER"

	// MaxLength is the PostgreSQL identifier limit, the tightest of the supported servers.
	MaxLength = 63

	workerPrefix = "gw"
)

var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ResolveName returns base unchanged when worker is nil, otherwise base
// suffixed with "_gw<ordinal>".
func ResolveName(base string, worker *int) string {
	if worker == nil {
		return base
	}
	return base + "_" + WorkerToken(*worker)
}

// WorkerToken formats an ordinal as a worker token, e.g. 3 -> "gw3".
func WorkerToken(ordinal int) string {
	return workerPrefix + strconv.Itoa(ordinal)
}

// ParseWorker parses a worker token such as "gw3".
func ParseWorker(token string) (int, bool) {
	if !strings.HasPrefix(token, workerPrefix) {
		return 0, false
	}
	digits := token[len(workerPrefix):]
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// WorkerFromEnv returns the ordinal from TESTDB_WORKER, or nil when the
// process is not a parallel worker.
func WorkerFromEnv() *int {
	n, ok := ParseWorker(os.Getenv(WorkerEnvVar))
	if !ok {
		return nil
	}
	return &n
}

// TestDatabaseName prefixes name unless it already carries the prefix.
func TestDatabaseName(prefix, name string) string {
	if strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + name
}

// WorkerNames lists the resolved names of workers 0..n-1.
func WorkerNames(base string, n int) []string {
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ordinal := i
		names = append(names, ResolveName(base, &ordinal))
	}
	return names
}

// Validate rejects names that cannot be used unquoted as a database name on
// every supported server.
func Validate(name string) error {
	if name == "" {
		return tderrors.Wrapf(tderrors.ErrInvalidName, "database name is empty")
	}
	if len(name) > MaxLength {
		return tderrors.Wrapf(tderrors.ErrInvalidName, "%q is longer than %d bytes", name, MaxLength)
	}
	if !validName.MatchString(name) {
		return tderrors.Wrapf(tderrors.ErrInvalidName, "%q must contain only letters, digits and underscores", name)
	}
	return nil
}

// ResolveValid resolves the name and rejects it when Validate would.
func ResolveValid(base string, worker *int) (string, error) {
	name := ResolveName(base, worker)
	if err := Validate(name); err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	return name, nil
}
