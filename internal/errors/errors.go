package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

type TestDBError struct {
	Code    string
	Message string
	cause   error
}

func (e *TestDBError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *TestDBError) Unwrap() error {
	return e.cause
}

func (e *TestDBError) Is(target error) bool {
	if t, ok := target.(*TestDBError); ok {
		return e.Code == t.Code
	}
	return false
}

var (
	ErrAuthenticationFailed = &TestDBError{Code: "T1000", Message: "Authentication failed"}
	ErrDatabaseUnavailable  = &TestDBError{Code: "T1001", Message: "Database server not reachable"}
	ErrDatabaseNotFound     = &TestDBError{Code: "T1003", Message: "Database does not exist"}
	ErrTimeout              = &TestDBError{Code: "T1008", Message: "Operation timeout"}

	ErrInvalidName         = &TestDBError{Code: "T2001", Message: "Invalid database name"}
	ErrInvalidConfig       = &TestDBError{Code: "T2002", Message: "Invalid configuration"}
	ErrUnsupportedProvider = &TestDBError{Code: "T2003", Message: "Unsupported database provider"}

	ErrMigrationFailed   = &TestDBError{Code: "T3001", Message: "Migration failed"}
	ErrDatabaseOperation = &TestDBError{Code: "T3002", Message: "Database operation failed"}
)

type OperationType string

const (
	OpConnect OperationType = "Connect"
	OpExists  OperationType = "Exists"
	OpCreate  OperationType = "Create"
	OpDrop    OperationType = "Drop"
	OpOpen    OperationType = "Open"
	OpMark    OperationType = "Mark"
	OpMigrate OperationType = "Migrate"
)

func NewTestDBError(code, message string, cause error) *TestDBError {
	return &TestDBError{Code: code, Message: message, cause: cause}
}

func Wrap(sentinel *TestDBError, cause error) *TestDBError {
	return &TestDBError{Code: sentinel.Code, Message: sentinel.Message, cause: cause}
}

// Wrapf wraps a sentinel with a formatted detail message and no underlying cause.
func Wrapf(sentinel *TestDBError, format string, args ...interface{}) *TestDBError {
	return &TestDBError{Code: sentinel.Code, Message: sentinel.Message, cause: fmt.Errorf(format, args...)}
}

func IsDatabaseUnavailable(err error) bool {
	return errors.Is(err, ErrDatabaseUnavailable)
}

func IsMigrationFailed(err error) bool {
	return errors.Is(err, ErrMigrationFailed)
}

func IsInvalidName(err error) bool {
	return errors.Is(err, ErrInvalidName)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// PostgreSQL SQLSTATE classes and MySQL server error numbers that mean the
// server could not be used at all.
var (
	pgUnavailableCodes = map[string]bool{
		"08000": true, // connection_exception
		"08001": true, // sqlclient_unable_to_establish_sqlconnection
		"08004": true, // sqlserver_rejected_establishment_of_sqlconnection
		"08006": true, // connection_failure
		"57P03": true, // cannot_connect_now
	}
	pgAuthCodes = map[string]bool{
		"28000": true, // invalid_authorization_specification
		"28P01": true, // invalid_password
	}
	mysqlAuthCodes = map[uint16]bool{
		1044: true, // ER_DBACCESS_DENIED_ERROR
		1045: true, // ER_ACCESS_DENIED_ERROR
	}
)

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "timed out") ||
		strings.Contains(errStr, "deadline exceeded")
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "unable to open database file") ||
		strings.Contains(errStr, "bad connection")
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "3D000" // invalid_catalog_name
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1049 // ER_BAD_DB_ERROR
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "does not exist") ||
		strings.Contains(errStr, "unknown database")
}

// MapDriverError classifies a raw driver error into one of the coded sentinels.
// Errors that are already coded are returned unchanged.
func MapDriverError(err error, op OperationType) error {
	if err == nil {
		return nil
	}

	var coded *TestDBError
	if errors.As(err, &coded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgAuthCodes[pgErr.Code]:
			return Wrap(ErrAuthenticationFailed, err)
		case pgUnavailableCodes[pgErr.Code]:
			return Wrap(ErrDatabaseUnavailable, err)
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && mysqlAuthCodes[myErr.Number] {
		return Wrap(ErrAuthenticationFailed, err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return Wrap(ErrDatabaseUnavailable, err)
	}

	if isTimeout(err) {
		if op == OpConnect {
			return Wrap(ErrDatabaseUnavailable, err)
		}
		return Wrap(ErrTimeout, err)
	}

	if isConnectionError(err) {
		return Wrap(ErrDatabaseUnavailable, err)
	}

	if isNotFound(err) && op == OpOpen {
		return Wrap(ErrDatabaseNotFound, err)
	}

	if op == OpMigrate {
		return Wrap(ErrMigrationFailed, err)
	}

	return Wrap(ErrDatabaseOperation, fmt.Errorf("%s: %w", strings.ToLower(string(op)), err))
}
