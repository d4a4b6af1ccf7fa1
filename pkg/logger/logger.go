// pkg/logger/logger.go
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Sugared = *zap.SugaredLogger

// New builds the process logger. prod gets JSON output; anything else the
// development console encoder. level overrides the default level when it parses.
func New(env, level string) Sugared {
	var zc zap.Config
	if env == "prod" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	if level != "" {
		if lvl, err := zapcore.ParseLevel(level); err == nil {
			zc.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	z, err := zc.Build()
	if err != nil {
		z = zap.NewNop()
	}
	return z.With(zap.String("env", env)).Sugar()
}

// Nop returns a logger that discards everything; used by tests and library defaults.
func Nop() Sugared { return zap.NewNop().Sugar() }
