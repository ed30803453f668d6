package logger

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

// Logger is the console logger used by components at startup and in
// background work. Request-scoped logging goes through zap, see FromEcho.
type Logger struct {
	serviceName string
}

type level int32

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

var (
	INFO_EMOJI    = "ℹ️ "
	SUCCESS_EMOJI = "✅ "
	WARN_EMOJI    = "⚠️ "
	ERROR_EMOJI   = "❌ "
	DEBUG_EMOJI   = "🔍 "

	minLevel atomic.Int32
)

func init() {
	minLevel.Store(int32(levelDebug))
}

// SetLevel sets the minimum console level: debug, info, warn or error.
func SetLevel(name string) {
	switch strings.ToLower(name) {
	case "info":
		minLevel.Store(int32(levelInfo))
	case "warn":
		minLevel.Store(int32(levelWarn))
	case "error":
		minLevel.Store(int32(levelError))
	default:
		minLevel.Store(int32(levelDebug))
	}
}

func New(serviceName string) *Logger {
	return &Logger{
		serviceName: serviceName,
	}
}

// Named returns a logger for a sub-component, e.g. "RBAC" -> "RBAC/guard".
func (l *Logger) Named(name string) *Logger {
	return &Logger{serviceName: l.serviceName + "/" + name}
}

func enabled(lv level) bool {
	return int32(lv) >= minLevel.Load()
}

func (l *Logger) formatMessage(level, emoji, msg string) string {
	_, file, line, _ := runtime.Caller(2)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fileName := filepath.Base(file)

	return fmt.Sprintf("%s | %s | %s | %s:%d | %s | %s",
		emoji,
		timestamp,
		level,
		fileName,
		line,
		l.serviceName,
		msg,
	)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	if !enabled(levelInfo) {
		return
	}
	color.Cyan(l.formatMessage("INFO", INFO_EMOJI, fmt.Sprintf(msg, args...)))
}

func (l *Logger) Success(msg string, args ...interface{}) {
	if !enabled(levelInfo) {
		return
	}
	color.Green(l.formatMessage("SUCCESS", SUCCESS_EMOJI, fmt.Sprintf(msg, args...)))
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	if !enabled(levelWarn) {
		return
	}
	color.Yellow(l.formatMessage("WARN", WARN_EMOJI, fmt.Sprintf(msg, args...)))
}

// Error logs msg with err appended and returns msg wrapping err, so call
// sites can log and propagate in one statement.
func (l *Logger) Error(msg string, err error, args ...interface{}) error {
	if enabled(levelError) {
		line := fmt.Sprintf(msg, args...)
		if err != nil {
			line = fmt.Sprintf("%s: %v", line, err)
		}
		color.Red(l.formatMessage("ERROR", ERROR_EMOJI, line))
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(msg, args...), err)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	if !enabled(levelDebug) {
		return
	}
	color.Magenta(l.formatMessage("DEBUG", DEBUG_EMOJI, fmt.Sprintf(msg, args...)))
}
