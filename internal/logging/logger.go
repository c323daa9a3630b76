// Package logging provides config-driven categorized logging for codeswarm.
// Logs are written to <workspace>/logs/ with a separate file per category,
// on top of zap cores. Logging is controlled by debug_mode in the config -
// when false, category loggers are silent no-ops.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot         Category = "boot"         // Boot/initialization
	CategoryOrchestrator Category = "orchestrator" // Workflow state machine
	CategoryOracle       Category = "oracle"       // LLM API calls
	CategoryRateLimit    Category = "ratelimit"    // Quota clock waits
	CategorySandbox      Category = "sandbox"      // Path guard decisions, file ops
	CategoryAuditor      Category = "auditor"      // Auditor agent activity
	CategoryFixer        Category = "fixer"        // Fixer agent activity
	CategoryJudge        Category = "judge"        // Judge agent activity
	CategoryTools        Category = "tools"        // External tool execution
)

// Settings mirrors config.LoggingConfig to avoid a circular import.
type Settings struct {
	DebugMode  bool
	Categories map[string]bool
	Level      string
}

// Logger wraps a zap sugared logger scoped to one category.
// A Logger with a nil sugar is a no-op; callers never need to nil-check.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*Logger)
	settings Settings
	logsDir  string
	level    zapcore.Level
)

// Initialize sets up the logging directory and records the settings.
// Should be called once at startup. A no-op when debug mode is off.
func Initialize(workspace string, s Settings) error {
	mu.Lock()

	settings = s
	loggers = make(map[Category]*Logger)

	if err := level.UnmarshalText([]byte(defaultIfEmpty(s.Level, "info"))); err != nil {
		level = zapcore.InfoLevel
	}

	if !s.DebugMode {
		logsDir = ""
		mu.Unlock()
		return nil
	}

	if workspace == "" {
		mu.Unlock()
		return fmt.Errorf("workspace path required")
	}
	logsDir = filepath.Join(workspace, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		mu.Unlock()
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	mu.Unlock()

	boot := Get(CategoryBoot)
	boot.Info("=== codeswarm logging initialized ===")
	boot.Info("logs directory: %s", logsDir)
	boot.Info("level: %s", level)
	return nil
}

func defaultIfEmpty(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// IsCategoryEnabled reports whether a category produces output.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if !settings.DebugMode || logsDir == "" {
		return false
	}
	if settings.Categories == nil {
		return true
	}
	enabled, ok := settings.Categories[string(category)]
	if !ok {
		return true // enabled by default when not listed
	}
	return enabled
}

// Get returns (or creates) the logger for a category.
// Returns a no-op logger when the category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}
	if !categoryEnabledLocked(category) {
		l := &Logger{category: category}
		loggers[category] = l
		return l
	}

	path := filepath.Join(logsDir, string(category)+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] cannot open %s: %v\n", path, err)
		l := &Logger{category: category}
		loggers[category] = l
		return l
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(file), level)
	l := &Logger{
		category: category,
		sugar:    zap.New(core).Sugar().Named(string(category)),
	}
	loggers[category] = l
	return l
}

// Sync flushes all category loggers. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
	}
}

// Debug logs a printf-style message at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Debugf(format, args...)
	}
}

// Info logs a printf-style message at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Infof(format, args...)
	}
}

// Warn logs a printf-style message at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Warnf(format, args...)
	}
}

// Error logs a printf-style message at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Errorf(format, args...)
	}
}

// Convenience helpers for the chattiest categories.

// Orchestrator logs to the orchestrator category at info level.
func Orchestrator(format string, args ...interface{}) {
	Get(CategoryOrchestrator).Info(format, args...)
}

// Oracle logs to the oracle category at info level.
func Oracle(format string, args ...interface{}) {
	Get(CategoryOracle).Info(format, args...)
}

// RateLimit logs to the ratelimit category at debug level.
func RateLimit(format string, args ...interface{}) {
	Get(CategoryRateLimit).Debug(format, args...)
}

// Sandbox logs to the sandbox category at info level.
func Sandbox(format string, args ...interface{}) {
	Get(CategorySandbox).Info(format, args...)
}

// Tools logs to the tools category at info level.
func Tools(format string, args ...interface{}) {
	Get(CategoryTools).Info(format, args...)
}
