// Package logtail reads the end of cranky's log file for the TUI log pane.
//
// Read keeps a ring buffer of the last lines so large files are scanned
// once in constant memory. Parse splits a line written by the slog text
// handler into time, level, message and attributes so the pane can color
// records by level.
package logtail
