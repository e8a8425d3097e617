package config

import "time"

// Config is the root configuration structure for the drivelogic reasoner.
// It contains the rule base location, the decision policy, batch and server
// settings, result storage and telemetry.
type Config struct {
	// Rules locates the rule base and taxonomy and controls hot reload.
	Rules RulesConfig `yaml:"rules"`

	// Policy holds the post-matching decisions: elevated rules, exclusion
	// pairs and the reserved default and start records.
	Policy PolicyConfig `yaml:"policy"`

	// Scene locates scene description input for batch runs.
	Scene SceneConfig `yaml:"scene"`

	// Runner controls batch evaluation.
	Runner RunnerConfig `yaml:"runner"`

	// Results controls where evaluation results are stored.
	Results ResultsConfig `yaml:"results"`

	// Diagnostics controls the diagnostic sink that receives the
	// identifier table, the trie and per-scene facts.
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`

	// Server contains HTTP server configuration for "drivelogic serve".
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RulesConfig locates the rule base and taxonomy.
type RulesConfig struct {
	// Path is the rule base file (JSON or YAML).
	// Default: "rules.json"
	Path string `yaml:"path"`

	// TaxonomyPath is an optional taxonomy file. When empty the built-in
	// driving taxonomy is used.
	TaxonomyPath string `yaml:"taxonomy_path"`

	// Watch enables recompilation when the rule or taxonomy file changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce is how long file events are coalesced before reloading.
	// Default: 100ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// Git, when its repository is set, loads the rule base from a Git
	// repository instead. Path and TaxonomyPath are then relative to the
	// repository root and Watch polls the remote for new commits.
	Git GitConfig `yaml:"git"`
}

// GitConfig locates a rule base kept in a Git repository.
type GitConfig struct {
	// Repository is the clone URL. Empty disables the Git source.
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// LocalPath is where the repository is cloned.
	// Default: "data/rules-repo"
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history; 0 clones everything.
	Depth int `yaml:"depth"`

	// CleanOnStart removes an existing clone before cloning again.
	CleanOnStart bool `yaml:"clean_on_start"`

	// PollInterval is how often the remote is checked when watching.
	// Default: 30s
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone or pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	Auth GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig selects how to authenticate to the remote.
type GitAuthConfig struct {
	// Type is "none", "token" or "ssh".
	Type string `yaml:"type"`

	// Token is a personal access token for HTTPS remotes. Usually supplied
	// through DRIVELOGIC_RULES_GIT_TOKEN.
	Token string `yaml:"token"`

	SSHKeyPath       string `yaml:"ssh_key_path"`
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// PolicyConfig mirrors the engine policy.
type PolicyConfig struct {
	// Elevated rules suppress the default action.
	Elevated []int `yaml:"elevated"`

	// Exclusions are applied in the order listed.
	Exclusions []ExclusionConfig `yaml:"exclusions"`

	// DefaultRuleID tags the default action. Must not be a rule id.
	// Default: 70
	DefaultRuleID int `yaml:"default_rule_id"`

	// DefaultAction is added when no elevated rule fired.
	// Default: "maintain_speed"
	DefaultAction string `yaml:"default_action"`

	// StartRuleID tags the start override record.
	// Default: 58
	StartRuleID int `yaml:"start_rule_id"`

	// StartAction is added when the override device turns green.
	// Default: "start"
	StartAction string `yaml:"start_action"`

	// OverrideDevice is the control device watched for the start override.
	// Default: "traffic_light"
	OverrideDevice string `yaml:"override_device"`

	// OverrideFrom are the previous states that trigger the override.
	// Default: ["red", "amber"]
	OverrideFrom []string `yaml:"override_from"`

	// OverrideTo is the current state that triggers the override.
	// Default: "green"
	OverrideTo string `yaml:"override_to"`

	// OvertakeMarker is the road-user state meaning "overtaking ego".
	// Default: "overtake_ego"
	OvertakeMarker string `yaml:"overtake_marker"`
}

// ExclusionConfig is one exclusion pair.
type ExclusionConfig struct {
	When   []int `yaml:"when"`
	Remove []int `yaml:"remove"`
}

// SceneConfig locates scene input.
type SceneConfig struct {
	// Path is the scene file mapping scene ids to descriptions.
	Path string `yaml:"path"`

	// SynonymsPath is an optional intent → actions mapping used to report
	// intentions that no fired action covers.
	SynonymsPath string `yaml:"synonyms_path"`
}

// RunnerConfig controls batch evaluation.
type RunnerConfig struct {
	// Workers is the number of scenes evaluated concurrently.
	// Default: 4
	Workers int `yaml:"workers"`

	// SceneTimeout bounds the evaluation of one scene. 0 disables it.
	// Default: 10s
	SceneTimeout time.Duration `yaml:"scene_timeout"`

	// SkipCached skips scenes with a stored result for the same rule base.
	// Default: true
	SkipCached bool `yaml:"skip_cached"`

	// FailFast stops the batch at the first scene error.
	// Default: false
	FailFast bool `yaml:"fail_fast"`
}

// ResultsConfig controls result storage.
type ResultsConfig struct {
	// Enabled controls whether results are stored at all.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the store.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Retention controls pruning of old results.
	Retention RetentionConfig `yaml:"retention"`

	// ExportPath is where "results export" writes by default.
	// Default: "result.json"
	ExportPath string `yaml:"export_path"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/results.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "sqlite3" (cgo, mattn/go-sqlite3), "sqlite" (pure Go, modernc)
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig controls result pruning.
type RetentionConfig struct {
	// Days is how long results are kept. 0 keeps them forever.
	// Default: 30
	Days int `yaml:"days"`

	// MaxRecords caps the number of stored results. 0 means unlimited.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// PruneSchedule is a cron expression for scheduled pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchiveDir, when set, receives a JSON copy of results before they
	// are pruned.
	// Default: ""
	ArchiveDir string `yaml:"archive_dir"`
}

// DiagnosticsConfig controls the diagnostic sink.
type DiagnosticsConfig struct {
	// Enabled turns the sink on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Dir is where per-run diagnostic files are written. When empty,
	// diagnostics go to the application logger instead.
	// Default: "logs"
	Dir string `yaml:"dir"`

	// Level is the log level diagnostic records are written at.
	// Default: "debug"
	Level string `yaml:"level"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// ListenAddress is the address to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits request bodies.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// Auth restricts the /v1 API to known API keys. Health and metrics
	// endpoints stay open.
	Auth AuthConfig `yaml:"auth"`

	// TLS serves HTTPS, optionally requiring client certificates.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig lists the accepted API keys. No keys means no authentication.
type AuthConfig struct {
	APIKeys []APIKeyConfig `yaml:"api_keys"`
}

// APIKeyConfig is one client allowed to call the API. Keys are sent as
// "Authorization: Bearer <key>" or in the X-API-Key header.
type APIKeyConfig struct {
	// Name identifies the client in logs.
	Name     string `yaml:"name"`
	Key      string `yaml:"key"`
	Disabled bool   `yaml:"disabled"`
}

// TLSConfig configures HTTPS.
type TLSConfig struct {
	Enabled bool `yaml:"enabled"`

	// CertFile and KeyFile are PEM encoded.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// ClientCAFile enables mutual TLS: clients must present a certificate
	// signed by one of these CAs.
	ClientCAFile string `yaml:"client_ca_file"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "drivelogic"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "reasoner"
	Subsystem string `yaml:"subsystem"`

	// EvaluationBuckets are histogram buckets for scene evaluation
	// latency, in seconds.
	// Default: exponential from 10µs
	EvaluationBuckets []float64 `yaml:"evaluation_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces sampled when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "drivelogic"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the collector connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
