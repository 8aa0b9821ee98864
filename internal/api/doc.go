// Package api defines the wire and on-disk data types produced by the
// whisperx daemon: newline-delimited JSON events on the unix socket and the
// state/progress/history snapshot files. Decoding is tolerant: unknown event
// kinds decode without error and absent snapshot files are reported as
// "no data" rather than failures.
package api
