// Package history maintains the merged list of completed transcripts. The
// daemon announces completions over the socket and also writes a capped
// history file; the reconciler deduplicates the two sources by transcript id
// with the event-sourced record winning on conflict. An optional sqlite
// archive retains every record ever observed beyond the daemon's file cap.
package history
