// Package config handles tool setup shared by all binaries.
package config

import (
	"io"

	"github.com/grughuhler/picorv32-tang-nano-20k/internal/options"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
)

// CreateLogger creates a logger for the given tool flags. Debug wins over quiet.
// A nil output logs to stdout.
func CreateLogger(flags options.Flags, output io.Writer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = output
	switch {
	case flags.Debug:
		cfg.Level = log.DebugLevel
	case flags.Quiet:
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// PrintBanner logs the tool name and build information.
func PrintBanner(logger *log.Logger, flags options.Flags, tool, version, commit, date string) {
	if flags.Quiet {
		return
	}
	logger.Info(tool, log.String("version", buildinfo.Version(version, commit, date)))
}
