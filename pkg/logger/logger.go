package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ruta-norte/fleet-compliance-api/pkg/config"
	"github.com/ruta-norte/fleet-compliance-api/pkg/middleware/requestid"
)

// New builds the process logger from config. Production defaults to JSON,
// development to a console encoder with sampling disabled.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if cfg.Log.Format == "console" {
		zapCfg.Encoding = "console"
	} else {
		zapCfg.Encoding = "json"
	}
	zapCfg.Level = parseLevel(cfg.Log.Level)
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build()
}

func parseLevel(raw string) zap.AtomicLevel {
	lvl := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if raw == "" {
		return lvl
	}
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return lvl
}

// GinMiddleware logs one line per request. Server errors log at error
// level, client errors at warn, the rest at info.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if id := requestid.Value(c); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}

		switch {
		case status >= 500:
			l.Error("http_request", fields...)
		case status >= 400:
			l.Warn("http_request", fields...)
		default:
			l.Info("http_request", fields...)
		}
	}
}
