// Package config provides configuration management for the drivelogic
// reasoner.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("drivelogic.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("drivelogic.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention DRIVELOGIC_SECTION_FIELD.
// For example:
//
//   - DRIVELOGIC_RULES_PATH overrides rules.path
//   - DRIVELOGIC_RUNNER_WORKERS overrides runner.workers
//   - DRIVELOGIC_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Example
//
//	rules:
//	  path: uk_rules.json
//	  taxonomy_path: taxonomy.yaml
//	  watch: true
//	policy:
//	  elevated: [1, 2, 3, 58]
//	  exclusions:
//	    - when: [1, 8, 19, 20]
//	      remove: [2, 14, 15, 16, 17, 37, 38]
//	results:
//	  backend: sqlite
//	  sqlite:
//	    path: data/results.db
//	    driver: sqlite
package config
