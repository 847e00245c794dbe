// Package logging provides zerolog-based structured logging for finboard.
//
// Loggers are built from a Config (level, format, output), decorated with a
// component name and carried through context.Context together with a
// per-invocation trace ID so that every log line of one command or bulk run
// can be correlated.
package logging
