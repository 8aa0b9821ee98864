// Package status reconciles the daemon's push events and polled snapshot
// files into one authoritative view. Precedence is field-by-field: events
// rule while the socket is live, the state file stands in for status and
// filename while disconnected, and the progress file always wins for percent
// and stage because it is rewritten far more often than anything else.
package status
