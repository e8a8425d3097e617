// Package logging builds the application logger from the telemetry
// configuration.
//
// # Overview
//
// The package wraps log/slog:
//   - JSON, text and console output formats
//   - configurable level (debug, info, warn, error)
//   - context fields: request_id, run_id, scene_id, trace_id
//
// Context fields are added by a handler wrapper, so any *slog.Logger
// obtained from Logger.Slog picks them up from the ctx passed to the
// *Context logging methods. Libraries such as the compiler and the engine
// accept a plain *slog.Logger and stay unaware of this package.
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger.Slog())
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithSceneID(ctx, "scene_0042")
//	logger.InfoContext(ctx, "scene evaluated", "fired", 3)
package logging
