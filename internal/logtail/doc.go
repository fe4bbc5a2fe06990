// Package logtail reads the end of murmur's log file.
//
// The client logs with slog's text handler to a file under the data
// directory, since the terminal belongs to the UI. Read returns the last N
// entries in one pass using a ring buffer, optionally dropping entries below a
// level, which is what `murmur -tail` prints.
package logtail
