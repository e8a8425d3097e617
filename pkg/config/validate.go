package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateRules(&cfg.Rules)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateRunner(&cfg.Runner)...)
	errs = append(errs, validateResults(&cfg.Results)...)
	errs = append(errs, validateDiagnostics(&cfg.Diagnostics)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateRules(cfg *RulesConfig) []FieldError {
	var errs []FieldError
	if cfg.Path == "" {
		errs = append(errs, FieldError{Field: "rules.path", Message: "rule base path is required"})
	}
	if cfg.WatchDebounce < 0 {
		errs = append(errs, FieldError{Field: "rules.watch_debounce", Message: "debounce must be non-negative"})
	}

	git := &cfg.Git
	if git.Repository == "" {
		return errs
	}
	if git.Branch == "" {
		errs = append(errs, FieldError{Field: "rules.git.branch", Message: "branch is required"})
	}
	if git.PollInterval <= 0 {
		errs = append(errs, FieldError{Field: "rules.git.poll_interval", Message: "poll interval must be positive"})
	}
	if git.Depth < 0 {
		errs = append(errs, FieldError{Field: "rules.git.depth", Message: "depth must be non-negative"})
	}
	switch git.Auth.Type {
	case "", "none":
	case "token":
		if git.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.token", Message: "token auth requires a token"})
		}
	case "ssh":
		if git.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.ssh_key_path", Message: "ssh auth requires a key path"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "rules.git.auth.type",
			Message: fmt.Sprintf("unknown auth type %q (must be none, token or ssh)", git.Auth.Type),
		})
	}
	return errs
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	if cfg.DefaultAction == "" {
		errs = append(errs, FieldError{Field: "policy.default_action", Message: "default action is required"})
	}
	if cfg.StartAction == "" {
		errs = append(errs, FieldError{Field: "policy.start_action", Message: "start action is required"})
	}
	if cfg.DefaultRuleID == cfg.StartRuleID {
		errs = append(errs, FieldError{
			Field:   "policy.start_rule_id",
			Message: fmt.Sprintf("must differ from default_rule_id (%d)", cfg.DefaultRuleID),
		})
	}
	for _, id := range cfg.Elevated {
		if id == cfg.DefaultRuleID {
			errs = append(errs, FieldError{
				Field:   "policy.elevated",
				Message: fmt.Sprintf("default rule id %d cannot be elevated", id),
			})
		}
	}
	for i, ex := range cfg.Exclusions {
		if len(ex.When) == 0 {
			errs = append(errs, FieldError{Field: fmt.Sprintf("policy.exclusions[%d].when", i), Message: "must list at least one rule"})
		}
		if len(ex.Remove) == 0 {
			errs = append(errs, FieldError{Field: fmt.Sprintf("policy.exclusions[%d].remove", i), Message: "must list at least one rule"})
		}
	}
	if cfg.OverrideDevice != "" && (len(cfg.OverrideFrom) == 0 || cfg.OverrideTo == "") {
		errs = append(errs, FieldError{Field: "policy.override_from", Message: "override needs both from and to states"})
	}
	return errs
}

func validateRunner(cfg *RunnerConfig) []FieldError {
	var errs []FieldError
	if cfg.Workers < 1 {
		errs = append(errs, FieldError{Field: "runner.workers", Message: "must be at least 1"})
	}
	if cfg.SceneTimeout < 0 {
		errs = append(errs, FieldError{Field: "runner.scene_timeout", Message: "must be non-negative"})
	}
	return errs
}

func validateResults(cfg *ResultsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "results.sqlite.path", Message: "database path is required"})
		}
		if cfg.SQLite.Driver != "sqlite3" && cfg.SQLite.Driver != "sqlite" {
			errs = append(errs, FieldError{
				Field:   "results.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q (must be sqlite3 or sqlite)", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{Field: "results.sqlite.max_open_conns", Message: "must be at least 1"})
		}
		if cfg.SQLite.MaxIdleConns < 0 || cfg.SQLite.MaxIdleConns > cfg.SQLite.MaxOpenConns {
			errs = append(errs, FieldError{Field: "results.sqlite.max_idle_conns", Message: "must be between 0 and max_open_conns"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "results.backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory or sqlite)", cfg.Backend),
		})
	}

	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{Field: "results.retention.days", Message: "must be non-negative"})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{Field: "results.retention.max_records", Message: "must be non-negative"})
	}
	if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "results.retention.prune_schedule",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}
	return errs
}

func validateDiagnostics(cfg *DiagnosticsConfig) []FieldError {
	if !validLevel(cfg.Level) {
		return []FieldError{{Field: "diagnostics.level", Message: fmt.Sprintf("invalid level %q", cfg.Level)}}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid address %q: %v", cfg.ListenAddress, err),
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "idle timeout must be positive"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "must be non-negative"})
	}

	seen := make(map[string]bool, len(cfg.Auth.APIKeys))
	for i, k := range cfg.Auth.APIKeys {
		field := fmt.Sprintf("server.auth.api_keys[%d]", i)
		if k.Key == "" {
			errs = append(errs, FieldError{Field: field + ".key", Message: "key is required"})
		} else if seen[k.Key] {
			errs = append(errs, FieldError{Field: field + ".key", Message: "duplicate key"})
		}
		seen[k.Key] = true
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.cert_file", Message: "required when TLS is enabled"})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.key_file", Message: "required when TLS is enabled"})
		}
		if cfg.TLS.MinVersion != "1.2" && cfg.TLS.MinVersion != "1.3" {
			errs = append(errs, FieldError{
				Field:   "server.tls.min_version",
				Message: fmt.Sprintf("must be 1.2 or 1.3, got %q", cfg.TLS.MinVersion),
			})
		}
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if !validLevel(cfg.Logging.Level) {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json, text, or console)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}

	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q (must be always, never, or ratio)", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0.0 and 1.0"})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
	}
	return errs
}

func validLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}
