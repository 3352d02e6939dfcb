// Package xlog is a thin global-logger wrapper around zap, grounded on
// the Init()/Get() singleton idiom seedfourtytwo-solana-exporter's
// cmd/solana-exporter uses around its own logger package.
package xlog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger *zap.SugaredLogger
)

// Init builds the process-wide logger. debug selects development-mode
// (debug level, console encoding) vs. production-mode (info level, JSON
// encoding) configuration.
func Init(debug bool) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	built, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	logger = built.Sugar()
	mu.Unlock()
	return nil
}

// Get returns the process-wide logger, lazily initializing a production
// logger if Init was never called.
func Get() *zap.SugaredLogger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	if err := Init(false); err != nil {
		return zap.NewNop().Sugar()
	}
	mu.RLock()
	defer mu.RUnlock()
	return logger
}
