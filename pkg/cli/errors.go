package cli

import (
	"errors"
	"fmt"
)

// Exit codes returned by the drivelogic command.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
	// ExitScenes means the command ran but at least one scene failed.
	ExitScenes = 3
)

// ConfigError reports an unusable configuration value or file.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config error: " + e.Message
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError wraps the failure of a subcommand.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// SceneFailureError reports that Failed of Total scenes could not be
// evaluated. Output was still produced for the rest.
type SceneFailureError struct {
	Failed int
	Total  int
}

func (e *SceneFailureError) Error() string {
	return fmt.Sprintf("%d of %d scenes failed", e.Failed, e.Total)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ExitConfig
	}
	var se *SceneFailureError
	if errors.As(err, &se) {
		return ExitScenes
	}
	return ExitFailure
}
