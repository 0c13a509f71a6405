// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for avcd.
//
// Configuration is loaded from a single file specified by:
//   - AVCD_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections (development,
// staging, production) that override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for avcd.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Cache configures the access vector cache itself.
	Cache CacheConfig `yaml:"cache"`

	// Policy configures the class map and policy-reload poller.
	Policy PolicyConfig `yaml:"policy"`

	// Audit configures the audit sink.
	Audit AuditConfig `yaml:"audit"`

	// Debug configures the debug/introspection HTTP server.
	Debug DebugConfig `yaml:"debug"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Cache  *CacheConfig  `yaml:"cache,omitempty"`
	Policy *PolicyConfig `yaml:"policy,omitempty"`
	Audit  *AuditConfig  `yaml:"audit,omitempty"`
	Debug  *DebugConfig  `yaml:"debug,omitempty"`
}

// CacheConfig configures the access vector cache.
type CacheConfig struct {
	// Threshold is the active node count above which the evictor runs.
	// Default: 512 (avc.DefaultCacheThreshold).
	Threshold int `yaml:"threshold"`

	// ReclaimBatch is the maximum number of nodes evicted per pass.
	// Default: 16 (avc.DefaultReclaimBatch).
	ReclaimBatch int `yaml:"reclaim_batch"`

	// Enforcing selects whether denials are enforced or only logged.
	// Default: true.
	Enforcing bool `yaml:"enforcing"`
}

// PolicyConfig configures the class map and the reload poller.
type PolicyConfig struct {
	// ClassMapFile is the path to the class_map JSONC file.
	ClassMapFile string `yaml:"class_map_file"`

	// RulesFile is the path to the type-enforcement rules JSONC file
	// loaded into the demonstration security server.
	RulesFile string `yaml:"rules_file"`

	// ReloadSchedule is a cron expression (lib/cron syntax) for how
	// often the poller checks ClassMapFile and RulesFile for changes.
	// Default: "*/30 * * * *" (every 30 minutes).
	ReloadSchedule string `yaml:"reload_schedule"`
}

// AuditConfig configures the audit sink.
type AuditConfig struct {
	// Dir, if non-empty, enables persisting audit segments under this
	// directory. Empty disables on-disk persistence entirely; audit
	// lines still populate the in-memory tail ring.
	Dir string `yaml:"dir"`

	// MaxSegmentBytes is the uncompressed size that triggers a segment
	// rotation. Default: 4 MiB (avcaudit.DefaultMaxSegmentBytes).
	MaxSegmentBytes int `yaml:"max_segment_bytes"`

	// RecipientKeys seals each segment to these age1... recipients.
	// Empty leaves segments unsealed (still zstd-compressed).
	RecipientKeys []string `yaml:"recipient_keys"`

	// RingCapacity is how many rendered lines /audit/tail retains.
	// Default: 4096 (avcaudit.DefaultRingCapacity).
	RingCapacity int `yaml:"ring_capacity"`

	// QueueCapacity bounds the non-blocking emit queue.
	// Default: 1024 (avcaudit.DefaultQueueCapacity).
	QueueCapacity int `yaml:"queue_capacity"`
}

// DebugConfig configures the debug/introspection HTTP server.
type DebugConfig struct {
	// ListenAddr is the address the debug server binds, e.g. ":9110".
	// Empty disables the debug server.
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Cache: CacheConfig{
			Threshold:    512,
			ReclaimBatch: 16,
			Enforcing:    true,
		},
		Policy: PolicyConfig{
			ClassMapFile:   "${AVCD_ROOT}/class_map.jsonc",
			RulesFile:      "${AVCD_ROOT}/rules.jsonc",
			ReloadSchedule: "*/30 * * * *",
		},
		Audit: AuditConfig{
			Dir:             "${AVCD_ROOT}/audit",
			MaxSegmentBytes: 4 << 20,
			RingCapacity:    4096,
			QueueCapacity:   1024,
		},
		Debug: DebugConfig{
			ListenAddr: ":9110",
		},
	}
}

// Load loads configuration from the AVCD_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if AVCD_CONFIG is not set, this fails.
// This ensures deterministic, auditable configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("AVCD_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("AVCD_CONFIG environment variable not set; " +
			"set it to the path of your avcd.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${AVCD_ROOT} and similar path variables for
// portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${AVCD_ROOT} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: enforce by default even if the file omits it.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Cache: &CacheConfig{Enforcing: true},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Cache != nil {
		if overrides.Cache.Threshold != 0 {
			c.Cache.Threshold = overrides.Cache.Threshold
		}
		if overrides.Cache.ReclaimBatch != 0 {
			c.Cache.ReclaimBatch = overrides.Cache.ReclaimBatch
		}
		// Enforcing is a bool, so we always apply it from overrides.
		c.Cache.Enforcing = overrides.Cache.Enforcing
	}

	if overrides.Policy != nil {
		if overrides.Policy.ClassMapFile != "" {
			c.Policy.ClassMapFile = overrides.Policy.ClassMapFile
		}
		if overrides.Policy.RulesFile != "" {
			c.Policy.RulesFile = overrides.Policy.RulesFile
		}
		if overrides.Policy.ReloadSchedule != "" {
			c.Policy.ReloadSchedule = overrides.Policy.ReloadSchedule
		}
	}

	if overrides.Audit != nil {
		if overrides.Audit.Dir != "" {
			c.Audit.Dir = overrides.Audit.Dir
		}
		if overrides.Audit.MaxSegmentBytes != 0 {
			c.Audit.MaxSegmentBytes = overrides.Audit.MaxSegmentBytes
		}
		if len(overrides.Audit.RecipientKeys) > 0 {
			c.Audit.RecipientKeys = overrides.Audit.RecipientKeys
		}
		if overrides.Audit.RingCapacity != 0 {
			c.Audit.RingCapacity = overrides.Audit.RingCapacity
		}
		if overrides.Audit.QueueCapacity != 0 {
			c.Audit.QueueCapacity = overrides.Audit.QueueCapacity
		}
	}

	if overrides.Debug != nil {
		if overrides.Debug.ListenAddr != "" {
			c.Debug.ListenAddr = overrides.Debug.ListenAddr
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Policy.ClassMapFile = expandVars(c.Policy.ClassMapFile, vars)
	c.Policy.RulesFile = expandVars(c.Policy.RulesFile, vars)
	c.Audit.Dir = expandVars(c.Audit.Dir, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Cache.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("cache.threshold must be positive"))
	}

	if c.Cache.ReclaimBatch <= 0 {
		errs = append(errs, fmt.Errorf("cache.reclaim_batch must be positive"))
	}

	if c.Policy.ClassMapFile == "" {
		errs = append(errs, fmt.Errorf("policy.class_map_file is required"))
	}

	if c.Policy.ReloadSchedule == "" {
		errs = append(errs, fmt.Errorf("policy.reload_schedule is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsureAuditDir creates the configured audit directory if it doesn't
// exist and on-disk persistence is enabled.
func (c *Config) EnsureAuditDir() error {
	if c.Audit.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.Audit.Dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", c.Audit.Dir, err)
	}
	return nil
}
