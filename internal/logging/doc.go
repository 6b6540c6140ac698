// Package logging builds the process-wide slog logger.
//
// Records go to the given writer (stdout in production) and, when a log file
// is configured, also to a size-rotated file.
package logging
