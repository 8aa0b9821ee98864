// Package snapshot polls the daemon's on-disk state files. Every cycle is
// advisory: a missing file means no data this cycle, a malformed file skips
// the cycle, and I/O failures never propagate to callers. The package also
// owns the one write this client performs into daemon state, the error
// dismissal rewrite of state.json.
package snapshot
