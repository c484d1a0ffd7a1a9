package utils

// logger.go - настройка логирования
//
// Назначение:
// Инициализация и настройка структурированного логирования.
//
// Реализовано на базе zap (uber-go/zap): один SugaredLogger собирается
// в InitLogger и передаётся явной зависимостью в конструкторы компонентов
// (никаких package-level get_logger() синглтонов).

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig задаёт формат и уровень логирования.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// InitLogger создаёт *zap.SugaredLogger по конфигурации. Уровень логов,
// не распознанный из Level, тихо падает обратно на info.
func InitLogger(cfg LogConfig) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Format == "console" {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}

// NewNop returns a logger that discards everything, for tests that need
// a non-nil logger but don't care about output.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
