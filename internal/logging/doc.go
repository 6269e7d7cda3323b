// Package logging builds the slog loggers used across thorn and defines the
// canonical field names components attach to records.
package logging
