package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	instance *zap.SugaredLogger
	once     sync.Once
)

type Config struct {
	Development bool
}

// New builds the process-wide sugared logger. Subsequent calls return
// the logger built by the first one regardless of cfg.
func New(cfg Config) (*zap.SugaredLogger, error) {
	var err error
	once.Do(func() {
		var l *zap.Logger
		if cfg.Development {
			l, err = zap.NewDevelopment()
		} else {
			l, err = zap.NewProduction()
		}
		if err != nil {
			return
		}
		instance = l.Sugar()
	})
	return instance, err
}

// Nop returns a logger that discards everything. Used by tests and as
// a fallback when a component is constructed without a logger.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
