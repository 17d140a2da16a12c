package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel representa o nível de log
type LogLevel int

const (
	LogLevelQuery LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// String retorna a representação em string do nível de log
func (l LogLevel) String() string {
	switch l {
	case LogLevelQuery:
		return "query"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Fields are structured key/value pairs attached to a log line.
type Fields = logrus.Fields

// Logger filters by the enabled level set and writes through logrus.
type Logger struct {
	levels map[LogLevel]bool
	base   *logrus.Logger
	fields Fields
}

var defaultLogger = NewLogger([]string{"warn", "error"}, os.Stderr)

// NewLogger cria um novo logger
func NewLogger(levels []string, writer io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(writer)
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})

	return &Logger{
		levels: ParseLevels(levels),
		base:   base,
	}
}

// ParseLevels converts names like "info" or "warning" into a level set.
func ParseLevels(levels []string) map[LogLevel]bool {
	set := make(map[LogLevel]bool)
	for _, level := range levels {
		switch strings.ToLower(strings.TrimSpace(level)) {
		case "query":
			set[LogLevelQuery] = true
		case "info":
			set[LogLevelInfo] = true
		case "warn", "warning":
			set[LogLevelWarn] = true
		case "error":
			set[LogLevelError] = true
		}
	}
	return set
}

// Enabled reports whether the level is switched on.
func (l *Logger) Enabled(level LogLevel) bool {
	return l.levels[level]
}

// WithFields returns a child logger that adds fields to every line.
func (l *Logger) WithFields(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{levels: l.levels, base: l.base, fields: merged}
}

func (l *Logger) entry() *logrus.Entry {
	return l.base.WithFields(l.fields)
}

// Query loga uma query SQL
func (l *Logger) Query(query string, args []interface{}, duration time.Duration) {
	if !l.levels[LogLevelQuery] {
		return
	}
	l.entry().WithField("took", duration.String()).Debug(formatQuery(query, args))
}

// Info loga uma mensagem informativa
func (l *Logger) Info(format string, args ...interface{}) {
	if !l.levels[LogLevelInfo] {
		return
	}
	l.entry().Info(fmt.Sprintf(format, args...))
}

// Warn loga um aviso
func (l *Logger) Warn(format string, args ...interface{}) {
	if !l.levels[LogLevelWarn] {
		return
	}
	l.entry().Warn(fmt.Sprintf(format, args...))
}

// Error loga um erro
func (l *Logger) Error(format string, args ...interface{}) {
	if !l.levels[LogLevelError] {
		return
	}
	l.entry().Error(fmt.Sprintf(format, args...))
}

// formatQuery formata uma query SQL com seus argumentos
func formatQuery(query string, args []interface{}) string {
	if len(args) == 0 {
		return query
	}

	formatted := query
	argIndex := 0

	// PostgreSQL ($1, $2, ...)
	if strings.Contains(query, "$") {
		for i := 1; argIndex < len(args) && i <= len(args); i++ {
			placeholder := fmt.Sprintf("$%d", i)
			if strings.Contains(formatted, placeholder) {
				formatted = strings.Replace(formatted, placeholder, formatArg(args[argIndex]), 1)
				argIndex++
			}
		}
		return formatted
	}

	// MySQL/SQLite (?)
	for argIndex < len(args) && strings.Contains(formatted, "?") {
		formatted = strings.Replace(formatted, "?", formatArg(args[argIndex]), 1)
		argIndex++
	}
	return formatted
}

// formatArg formata um argumento para exibição, ocultando dados sensíveis
func formatArg(arg interface{}) string {
	switch v := arg.(type) {
	case string:
		if isSensitiveData(v) {
			return "'***REDACTED***'"
		}
		if len(v) > 100 {
			return fmt.Sprintf("'%s...' (truncated)", v[:100])
		}
		return fmt.Sprintf("'%s'", v)
	case []byte:
		if len(v) > 0 {
			return "'***REDACTED***'"
		}
		return "''"
	case nil:
		return "NULL"
	default:
		str := fmt.Sprintf("%v", v)
		if isSensitiveData(str) {
			return "***REDACTED***"
		}
		return str
	}
}

func isSensitiveData(s string) bool {
	s = strings.ToLower(s)
	for _, keyword := range []string{"password", "passwd", "pwd", "secret", "token", "credential", "private_key"} {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}

// RedactURL hides the password part of a connection URL.
func RedactURL(url string) string {
	schemeEnd := strings.Index(url, "://")
	at := strings.LastIndex(url, "@")
	if schemeEnd == -1 || at == -1 || at < schemeEnd {
		return url
	}
	userinfo := url[schemeEnd+3 : at]
	colon := strings.Index(userinfo, ":")
	if colon == -1 {
		return url
	}
	return url[:schemeEnd+3] + userinfo[:colon] + ":***" + url[at:]
}

// Funções globais para facilitar uso
func Query(query string, args []interface{}, duration time.Duration) {
	defaultLogger.Query(query, args, duration)
}

func Info(format string, args ...interface{}) {
	defaultLogger.Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	defaultLogger.Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	defaultLogger.Error(format, args...)
}

// WithFields returns a child of the default logger.
func WithFields(fields Fields) *Logger {
	return defaultLogger.WithFields(fields)
}

// SetDefaultLogger define o logger padrão
func SetDefaultLogger(logger *Logger) {
	defaultLogger = logger
}

// GetDefaultLogger retorna o logger padrão
func GetDefaultLogger() *Logger {
	return defaultLogger
}

// SetLogLevels configura os níveis de log do logger padrão
func SetLogLevels(levels []string) {
	defaultLogger.levels = ParseLevels(levels)
}

// SetLogWriter configura o writer do logger padrão
func SetLogWriter(writer io.Writer) {
	defaultLogger.base.SetOutput(writer)
}
