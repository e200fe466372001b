// internal/pkg/logger/logger.go

package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init 初始化全局 logger，服务名会附着在每一条日志上。
// 日志级别通过 LOG_LEVEL 环境变量控制，默认 info。
func Init(serviceName string) {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}

	log.Logger = zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 返回绑定在 ctx 上的 logger；如果 ctx 上没有，则退回全局 logger。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &log.Logger
	}
	return l
}

// WithContext 把全局 logger 挂到 ctx 上，供下游通过 Ctx 取用。
func WithContext(ctx context.Context) context.Context {
	return log.Logger.WithContext(ctx)
}

func Info() *zerolog.Event  { return log.Logger.Info() }
func Warn() *zerolog.Event  { return log.Logger.Warn() }
func Error() *zerolog.Event { return log.Logger.Error() }
