package ioc

import "log/slog"

// Options configures Build.
type Options struct {
	// Logger receives debug records about building, generic binding,
	// factory generation and disposal. Defaults to slog.Default(), or to
	// the parent's logger for child containers.
	Logger *slog.Logger

	// Compile compiles every registration during Build, so configuration
	// errors surface before the first resolution.
	Compile bool
}
