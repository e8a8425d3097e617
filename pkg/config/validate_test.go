package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty rules path", func(c *Config) { c.Rules.Path = "" }, "rules.path"},
		{"empty default action", func(c *Config) { c.Policy.DefaultAction = "" }, "policy.default_action"},
		{"shared reserved ids", func(c *Config) { c.Policy.StartRuleID = c.Policy.DefaultRuleID }, "policy.start_rule_id"},
		{"elevated default", func(c *Config) { c.Policy.Elevated = append(c.Policy.Elevated, 70) }, "policy.elevated"},
		{"one-sided exclusion", func(c *Config) { c.Policy.Exclusions = []ExclusionConfig{{When: []int{1}}} }, "policy.exclusions[0].remove"},
		{"git without branch", func(c *Config) {
			c.Rules.Git = GitConfig{Repository: "https://example.com/rules.git", PollInterval: time.Second}
		}, "rules.git.branch"},
		{"git token missing", func(c *Config) {
			c.Rules.Git = GitConfig{
				Repository:   "https://example.com/rules.git",
				Branch:       "main",
				PollInterval: time.Second,
				Auth:         GitAuthConfig{Type: "token"},
			}
		}, "rules.git.auth.token"},
		{"git unknown auth", func(c *Config) {
			c.Rules.Git = GitConfig{
				Repository:   "https://example.com/rules.git",
				Branch:       "main",
				PollInterval: time.Second,
				Auth:         GitAuthConfig{Type: "kerberos"},
			}
		}, "rules.git.auth.type"},
		{"no workers", func(c *Config) { c.Runner.Workers = 0 }, "runner.workers"},
		{"unknown driver", func(c *Config) { c.Results.SQLite.Driver = "postgres" }, "results.sqlite.driver"},
		{"idle above open", func(c *Config) { c.Results.SQLite.MaxIdleConns = 50 }, "results.sqlite.max_idle_conns"},
		{"negative retention", func(c *Config) { c.Results.Retention.Days = -1 }, "results.retention.days"},
		{"bad listen address", func(c *Config) { c.Server.ListenAddress = "localhost" }, "server.listen_address"},
		{"bad diagnostics level", func(c *Config) { c.Diagnostics.Level = "trace" }, "diagnostics.level"},
		{"bad log format", func(c *Config) { c.Telemetry.Logging.Format = "xml" }, "telemetry.logging.format"},
		{"bad metrics path", func(c *Config) { c.Telemetry.Metrics.Path = "metrics" }, "telemetry.metrics.path"},
		{"bad sampler", func(c *Config) { c.Telemetry.Tracing.Sampler = "sometimes" }, "telemetry.tracing.sampler"},
		{"ratio out of range", func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 }, "telemetry.tracing.sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, verr.Errors)
			}
		})
	}
}

func TestValidate_MemoryBackendSkipsSQLite(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Results.Backend = "memory"
	cfg.Results.SQLite.Driver = "anything"

	if err := Validate(cfg); err != nil {
		t.Errorf("memory backend should ignore sqlite settings: %v", err)
	}
}

func TestValidationError_Message(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("unexpected message: %q", got)
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if got := multi.Error(); !strings.Contains(got, "2 errors") || !strings.Contains(got, "b: worse") {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestApplyDefaults_Git(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Rules.Git != (GitConfig{}) {
		t.Errorf("git defaults applied without a repository: %+v", cfg.Rules.Git)
	}

	cfg = &Config{Rules: RulesConfig{Git: GitConfig{Repository: "https://example.com/rules.git"}}}
	ApplyDefaults(cfg)
	git := cfg.Rules.Git
	if git.Branch != DefaultGitBranch || git.LocalPath != DefaultGitLocalPath ||
		git.PollInterval != DefaultGitPollInterval || git.Auth.Type != "none" {
		t.Errorf("git defaults = %+v", git)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}
