// Package logging builds the slog loggers used across the client. The
// console handler prints compact single-line output for interactive use; the
// json handler emits machine-readable records for log files.
package logging
