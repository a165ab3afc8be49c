package logging

import (
	"fmt"
	"regexp"
	"sync"
)

// Registry tracks every Logger created via NewLogger/NewDebugLogger/Sublogger
// by name, so UpdateLoggerLevel and pattern-based Update can retune a
// running engine's verbosity without threading a Logger reference through
// every package that holds one.
type Registry struct {
	mu        sync.RWMutex
	loggers   map[string]Logger
	logConfig []LoggerPatternConfig
}

func newRegistry() *Registry {
	return &Registry{loggers: make(map[string]Logger)}
}

var globalRegistry = newRegistry()

func (lr *Registry) registerLogger(name string, logger Logger) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.loggers[name] = logger
}

func (lr *Registry) loggerNamed(name string) (Logger, bool) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	logger, ok := lr.loggers[name]
	return logger, ok
}

func (lr *Registry) updateLoggerLevel(name string, level Level) error {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	logger, ok := lr.loggers[name]
	if !ok {
		return fmt.Errorf("logger named %s not recognized", name)
	}
	logger.SetLevel(level)
	return nil
}

func (lr *Registry) updateLoggerLevelWithCfg(name string) error {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	logger, ok := lr.loggers[name]
	if !ok {
		return fmt.Errorf("logger named %s not recognized", name)
	}
	level := INFO
	for _, lpc := range lr.logConfig {
		r, err := regexp.Compile(buildRegexFromPattern(lpc.Pattern))
		if err != nil {
			return err
		}
		if r.MatchString(name) {
			l, err := LevelFromString(lpc.Level)
			if err != nil {
				return err
			}
			level = l
		}
	}
	logger.SetLevel(level)
	return nil
}

func (lr *Registry) registerConfig(logConfig []LoggerPatternConfig) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.logConfig = logConfig
}

func (lr *Registry) getCurrentConfig() []LoggerPatternConfig {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	return lr.logConfig
}

func (lr *Registry) getRegisteredLoggerNames() []string {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	names := make([]string, 0, len(lr.loggers))
	for name := range lr.loggers {
		names = append(names, name)
	}
	return names
}

// Update applies logConfig to every registered logger: the last pattern that
// matches a logger's name wins, and loggers matched by nothing fall back to
// INFO. Patterns failing validatePattern are skipped with a warning through
// errorLogger rather than aborting the whole update.
func (lr *Registry) Update(logConfig []LoggerPatternConfig, errorLogger Logger) error {
	lr.registerConfig(logConfig)

	applied := make(map[string]Level)
	for _, lpc := range logConfig {
		if !validatePattern(lpc.Pattern) {
			errorLogger.Warnw("failed to validate a pattern", "pattern", lpc.Pattern)
			continue
		}
		r, err := regexp.Compile(buildRegexFromPattern(lpc.Pattern))
		if err != nil {
			return err
		}
		level, err := LevelFromString(lpc.Level)
		if err != nil {
			return err
		}
		for _, name := range lr.getRegisteredLoggerNames() {
			if r.MatchString(name) {
				applied[name] = level
			}
		}
	}

	for _, name := range lr.getRegisteredLoggerNames() {
		level, ok := applied[name]
		if !ok {
			level = INFO
		}
		if err := lr.updateLoggerLevel(name, level); err != nil {
			return err
		}
	}
	return nil
}

// RegisterLogger registers a new logger with a given name.
func RegisterLogger(name string, logger Logger) {
	globalRegistry.registerLogger(name, logger)
}

// LoggerNamed returns the logger with the given name if one is registered.
func LoggerNamed(name string) (Logger, bool) {
	return globalRegistry.loggerNamed(name)
}

// UpdateLoggerLevel assigns level to the named logger.
func UpdateLoggerLevel(name string, level Level) error {
	return globalRegistry.updateLoggerLevel(name, level)
}

// GetRegisteredLoggerNames returns the names of all registered loggers.
func GetRegisteredLoggerNames() []string {
	return globalRegistry.getRegisteredLoggerNames()
}

// UpdateConfig applies a pattern-based level config across every registered
// logger. No code in this module calls it.
func UpdateConfig(logConfig []LoggerPatternConfig, errorLogger Logger) error {
	return globalRegistry.Update(logConfig, errorLogger)
}
