// Package logging provides config-driven categorized logging for giftflow.
// Every category is a named child of one zap root logger, so a single sink
// receives all output while each line still carries the system that wrote it.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"giftflow/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot         Category = "boot"         // Startup, config
	CategoryStore        Category = "store"        // Work-item storage, CSV import/export
	CategoryBrowser      Category = "browser"      // Chrome lifecycle, sessions
	CategoryDiscovery    Category = "discovery"    // Product search and ranking
	CategoryCheckout     Category = "checkout"     // Checkout automaton
	CategoryOrchestrator Category = "orchestrator" // Batch runs, denial cycling
	CategoryRiddle       Category = "riddle"       // Riddle generator calls
	CategoryCard         Category = "card"         // Card generator calls
	CategoryAPI          Category = "api"          // HTTP API
)

var (
	rootMu sync.RWMutex
	root   = zap.NewNop()
	cfg    config.LoggingConfig
)

// Build constructs a zap logger from the logging config. verbose forces the
// debug level.
func Build(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	var zc zap.Config
	if strings.EqualFold(lc.Format, "text") || strings.EqualFold(lc.Format, "console") {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(defaultString(lc.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if lc.File != "" {
		zc.OutputPaths = []string{lc.File}
	} else {
		zc.OutputPaths = []string{"stderr"}
	}

	return zc.Build()
}

// Initialize builds the root logger and installs it for Get.
func Initialize(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	logger, err := Build(lc, verbose)
	if err != nil {
		return nil, err
	}
	SetRoot(logger, lc)
	return logger, nil
}

// SetRoot installs an already built logger. Tests use it with zaptest/observer.
func SetRoot(logger *zap.Logger, lc config.LoggingConfig) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rootMu.Lock()
	defer rootMu.Unlock()
	root = logger
	cfg = lc
}

// Root returns the root logger (a no-op logger before Initialize).
func Root() *zap.Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

// Get returns the logger for a category. Disabled categories get a no-op
// logger.
func Get(category Category) *zap.Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	if !cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return root.Named(string(category))
}

// Sync flushes the root logger.
func Sync() {
	_ = Root().Sync()
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer measures an operation's duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("operation completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithThreshold logs a warning if the duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("slow operation",
			zap.String("op", t.op),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", threshold))
	} else {
		Get(t.category).Debug("operation completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	}
	return elapsed
}
