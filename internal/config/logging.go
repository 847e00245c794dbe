package config

import "github.com/rshade/finboard/internal/logging"

// ToLoggingConfig maps the logging section onto the logger's options. A
// configured file switches output to that file; "text" is accepted as a
// synonym for the console format.
func (lc *LoggingConfig) ToLoggingConfig() logging.Config {
	out := logging.Config{
		Level:  lc.Level,
		Format: lc.Format,
		Output: logging.OutputStderr,
		File:   lc.File,
	}
	if out.Format == "text" {
		out.Format = logging.FormatConsole
	}
	if lc.File != "" {
		out.Output = logging.OutputFile
	}
	return out
}

// GetLoggingConfig returns a copy of the process logging section for the
// caller to adjust.
func GetLoggingConfig() LoggingConfig {
	return GetGlobalConfig().Logging
}
