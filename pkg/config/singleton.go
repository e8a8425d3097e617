package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// The process-wide configuration. Commands load it once through Initialize
// and pass *Config down explicitly from there.
var (
	current  atomic.Pointer[Config]
	initOnce sync.Once
	initErr  error
)

// Initialize loads path (defaults only when empty), applies DRIVELOGIC_*
// environment overrides, validates and publishes the result. Later calls
// return the outcome of the first one.
func Initialize(path string) error {
	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		current.Store(cfg)
	})
	return initErr
}

// GetConfig returns the published configuration, nil before Initialize
// succeeded.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig publishes cfg. Tests use it to skip file loading.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}

// ReloadConfig loads path again and publishes it. A configuration that
// fails to load or validate leaves the published one untouched.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	current.Store(cfg)
	return nil
}

// MustGetConfig panics before Initialize succeeded.
func MustGetConfig() *Config {
	if cfg := current.Load(); cfg != nil {
		return cfg
	}
	panic("configuration not initialized: call Initialize first")
}
