package logger

import (
	"sync"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	RequestIDHeader  = "X-Request-ID"
	RequestIDKey     = "requestID"
	contextLoggerKey = "logger"
)

// ZapConfig holds structured logger configuration
type ZapConfig struct {
	Level       string
	Environment string
	ServiceName string
}

var (
	zapLog = zap.NewNop()
	zapMu  sync.Mutex
)

// InitZap builds the process-wide structured logger.
func InitZap(cfg ZapConfig) error {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var (
		built *zap.Logger
		err   error
	)
	fields := zap.Fields(
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Environment),
	)
	if cfg.Environment == "production" {
		prodConfig := zap.NewProductionConfig()
		prodConfig.Level = zap.NewAtomicLevelAt(level)
		prodConfig.EncoderConfig.TimeKey = "timestamp"
		prodConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		built, err = prodConfig.Build(fields)
	} else {
		devConfig := zap.NewDevelopmentConfig()
		devConfig.Level = zap.NewAtomicLevelAt(level)
		devConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		built, err = devConfig.Build(fields)
	}
	if err != nil {
		return err
	}

	zapMu.Lock()
	zapLog = built
	zapMu.Unlock()
	zap.ReplaceGlobals(built)
	return nil
}

// Zap returns the process-wide structured logger. It is a no-op logger
// until InitZap succeeds.
func Zap() *zap.Logger {
	zapMu.Lock()
	defer zapMu.Unlock()
	return zapLog
}

// WithRequest stores a request-scoped child logger on the echo context.
func WithRequest(c echo.Context, requestID string) *zap.Logger {
	l := Zap().With(zap.String("request_id", requestID))
	c.Set(contextLoggerKey, l)
	return l
}

// FromEcho retrieves the request logger, falling back to the global one
// tagged with whatever request id is known.
func FromEcho(c echo.Context) *zap.Logger {
	if l, ok := c.Get(contextLoggerKey).(*zap.Logger); ok {
		return l
	}

	requestID, ok := c.Get(RequestIDKey).(string)
	if !ok {
		requestID = c.Request().Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = "unknown"
		}
	}
	return Zap().With(zap.String("request_id", requestID))
}
