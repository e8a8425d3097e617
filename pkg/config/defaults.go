package config

import "time"

// Default values for configuration fields.
const (
	// Rules defaults
	DefaultRulesPath       = "rules.json"
	DefaultWatchDebounce   = 100 * time.Millisecond
	DefaultGitBranch       = "main"
	DefaultGitLocalPath    = "data/rules-repo"
	DefaultGitPollInterval = 30 * time.Second
	DefaultGitTimeout      = 30 * time.Second

	// Policy defaults
	DefaultPolicyDefaultRuleID  = 70
	DefaultPolicyDefaultAction  = "maintain_speed"
	DefaultPolicyStartRuleID    = 58
	DefaultPolicyStartAction    = "start"
	DefaultPolicyOverrideDevice = "traffic_light"
	DefaultPolicyOverrideTo     = "green"
	DefaultPolicyOvertakeMarker = "overtake_ego"

	// Runner defaults
	DefaultRunnerWorkers      = 4
	DefaultRunnerSceneTimeout = 10 * time.Second
	DefaultRunnerSkipCached   = true

	// Results defaults
	DefaultResultsEnabled         = true
	DefaultResultsBackend         = "sqlite"
	DefaultResultsExportPath      = "result.json"
	DefaultSQLitePath             = "data/results.db"
	DefaultSQLiteDriver           = "sqlite3"
	DefaultSQLiteMaxOpenConns     = 10
	DefaultSQLiteMaxIdleConns     = 5
	DefaultSQLiteWALMode          = true
	DefaultSQLiteBusyTimeout      = 5 * time.Second
	DefaultRetentionDays          = 30
	DefaultRetentionPruneSchedule = "0 3 * * *"
	DefaultRetentionMaxRecords    = int64(0)

	// Diagnostics defaults
	DefaultDiagnosticsDir   = "logs"
	DefaultDiagnosticsLevel = "debug"

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = int64(1 << 20)
	DefaultTLSMinVersion   = "1.3"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "text"
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "drivelogic"
	DefaultMetricsSubsystem   = "reasoner"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingService     = "drivelogic"
	DefaultTracingTimeout     = 10 * time.Second
)

// DefaultPolicyElevated are the rules that suppress the default action in
// the shipped rule base.
func DefaultPolicyElevated() []int {
	return []int{
		1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 24, 25, 27, 28, 32, 33,
		44, 45, 46, 47, 48, 49, 50, 51, 52, 53, 54, 58, 63,
	}
}

// DefaultPolicyExclusions are the exclusion pairs of the shipped rule base:
// stopping at a signal overrides proceeding on a filter light.
func DefaultPolicyExclusions() []ExclusionConfig {
	return []ExclusionConfig{
		{When: []int{1, 8, 19, 20}, Remove: []int{2, 14, 15, 16, 17, 37, 38}},
	}
}

// DefaultEvaluationBuckets covers 10µs to ~80ms.
func DefaultEvaluationBuckets() []float64 {
	return []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.08}
}

// NewDefaultConfig returns a configuration with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Booleans that
// default to true are only set when their whole section is empty, so an
// explicit false in YAML survives.
func ApplyDefaults(cfg *Config) {
	applyRulesDefaults(&cfg.Rules)
	applyPolicyDefaults(&cfg.Policy)
	applyRunnerDefaults(&cfg.Runner)
	applyResultsDefaults(&cfg.Results)
	applyDiagnosticsDefaults(&cfg.Diagnostics)
	applyServerDefaults(&cfg.Server)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyRulesDefaults(cfg *RulesConfig) {
	if cfg.Path == "" {
		cfg.Path = DefaultRulesPath
	}
	if cfg.WatchDebounce == 0 {
		cfg.WatchDebounce = DefaultWatchDebounce
	}

	if cfg.Git.Repository == "" {
		return
	}
	if cfg.Git.Branch == "" {
		cfg.Git.Branch = DefaultGitBranch
	}
	if cfg.Git.LocalPath == "" {
		cfg.Git.LocalPath = DefaultGitLocalPath
	}
	if cfg.Git.PollInterval == 0 {
		cfg.Git.PollInterval = DefaultGitPollInterval
	}
	if cfg.Git.Timeout == 0 {
		cfg.Git.Timeout = DefaultGitTimeout
	}
	if cfg.Git.Auth.Type == "" {
		cfg.Git.Auth.Type = "none"
	}
}

func applyPolicyDefaults(cfg *PolicyConfig) {
	if cfg.Elevated == nil {
		cfg.Elevated = DefaultPolicyElevated()
	}
	if cfg.Exclusions == nil {
		cfg.Exclusions = DefaultPolicyExclusions()
	}
	if cfg.DefaultRuleID == 0 {
		cfg.DefaultRuleID = DefaultPolicyDefaultRuleID
	}
	if cfg.DefaultAction == "" {
		cfg.DefaultAction = DefaultPolicyDefaultAction
	}
	if cfg.StartRuleID == 0 {
		cfg.StartRuleID = DefaultPolicyStartRuleID
	}
	if cfg.StartAction == "" {
		cfg.StartAction = DefaultPolicyStartAction
	}
	if cfg.OverrideDevice == "" {
		cfg.OverrideDevice = DefaultPolicyOverrideDevice
	}
	if cfg.OverrideFrom == nil {
		cfg.OverrideFrom = []string{"red", "amber"}
	}
	if cfg.OverrideTo == "" {
		cfg.OverrideTo = DefaultPolicyOverrideTo
	}
	if cfg.OvertakeMarker == "" {
		cfg.OvertakeMarker = DefaultPolicyOvertakeMarker
	}
}

func applyRunnerDefaults(cfg *RunnerConfig) {
	if *cfg == (RunnerConfig{}) {
		cfg.SkipCached = DefaultRunnerSkipCached
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultRunnerWorkers
	}
	if cfg.SceneTimeout == 0 {
		cfg.SceneTimeout = DefaultRunnerSceneTimeout
	}
}

func applyResultsDefaults(cfg *ResultsConfig) {
	if !cfg.Enabled && cfg.Backend == "" && cfg.SQLite == (SQLiteConfig{}) {
		cfg.Enabled = DefaultResultsEnabled
	}
	if cfg.Backend == "" {
		cfg.Backend = DefaultResultsBackend
	}
	if cfg.ExportPath == "" {
		cfg.ExportPath = DefaultResultsExportPath
	}

	if cfg.SQLite == (SQLiteConfig{}) {
		cfg.SQLite.WALMode = DefaultSQLiteWALMode
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultSQLitePath
	}
	if cfg.SQLite.Driver == "" {
		cfg.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.SQLite.MaxOpenConns == 0 {
		cfg.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.SQLite.MaxIdleConns == 0 {
		cfg.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	if cfg.Retention == (RetentionConfig{}) {
		cfg.Retention.Days = DefaultRetentionDays
	}
	if cfg.Retention.PruneSchedule == "" {
		cfg.Retention.PruneSchedule = DefaultRetentionPruneSchedule
	}
}

func applyDiagnosticsDefaults(cfg *DiagnosticsConfig) {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDiagnosticsDir
	}
	if cfg.Level == "" {
		cfg.Level = DefaultDiagnosticsLevel
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.TLS.MinVersion == "" {
		cfg.TLS.MinVersion = DefaultTLSMinVersion
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	if !cfg.Metrics.Enabled && cfg.Metrics.Path == "" && cfg.Metrics.Namespace == "" {
		cfg.Metrics.Enabled = DefaultMetricsEnabled
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Metrics.EvaluationBuckets) == 0 {
		cfg.Metrics.EvaluationBuckets = DefaultEvaluationBuckets()
	}

	if cfg.Tracing == (TracingConfig{}) {
		cfg.Tracing.Insecure = true
	}
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Tracing.Timeout == 0 {
		cfg.Tracing.Timeout = DefaultTracingTimeout
	}
}
