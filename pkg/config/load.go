package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DRIVELOGIC_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults. It does not
// validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention DRIVELOGIC_SECTION_FIELD (e.g., DRIVELOGIC_RULES_PATH) and
// always take precedence over the file.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
//
// An empty path skips the file and starts from defaults.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = NewDefaultConfig()
	} else {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	// A repository named only in the environment still needs its defaults.
	applyRulesDefaults(&cfg.Rules)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Rules
	envString("RULES_PATH", &cfg.Rules.Path)
	envString("RULES_TAXONOMY_PATH", &cfg.Rules.TaxonomyPath)
	envBool("RULES_WATCH", &cfg.Rules.Watch)
	envDuration("RULES_WATCH_DEBOUNCE", &cfg.Rules.WatchDebounce)
	envString("RULES_GIT_REPOSITORY", &cfg.Rules.Git.Repository)
	envString("RULES_GIT_BRANCH", &cfg.Rules.Git.Branch)
	envString("RULES_GIT_TOKEN", &cfg.Rules.Git.Auth.Token)

	// Policy
	envInt("POLICY_DEFAULT_RULE_ID", &cfg.Policy.DefaultRuleID)
	envString("POLICY_DEFAULT_ACTION", &cfg.Policy.DefaultAction)
	envInt("POLICY_START_RULE_ID", &cfg.Policy.StartRuleID)
	envString("POLICY_OVERTAKE_MARKER", &cfg.Policy.OvertakeMarker)

	// Scene
	envString("SCENE_PATH", &cfg.Scene.Path)
	envString("SCENE_SYNONYMS_PATH", &cfg.Scene.SynonymsPath)

	// Runner
	envInt("RUNNER_WORKERS", &cfg.Runner.Workers)
	envDuration("RUNNER_SCENE_TIMEOUT", &cfg.Runner.SceneTimeout)
	envBool("RUNNER_SKIP_CACHED", &cfg.Runner.SkipCached)
	envBool("RUNNER_FAIL_FAST", &cfg.Runner.FailFast)

	// Results
	envBool("RESULTS_ENABLED", &cfg.Results.Enabled)
	envString("RESULTS_BACKEND", &cfg.Results.Backend)
	envString("RESULTS_SQLITE_PATH", &cfg.Results.SQLite.Path)
	envString("RESULTS_SQLITE_DRIVER", &cfg.Results.SQLite.Driver)
	envInt("RESULTS_RETENTION_DAYS", &cfg.Results.Retention.Days)
	envString("RESULTS_EXPORT_PATH", &cfg.Results.ExportPath)

	// Diagnostics
	envBool("DIAGNOSTICS_ENABLED", &cfg.Diagnostics.Enabled)
	envString("DIAGNOSTICS_DIR", &cfg.Diagnostics.Dir)

	// Server
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)

	// Telemetry
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
