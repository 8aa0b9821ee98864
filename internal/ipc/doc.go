// Package ipc maintains the client side of the daemon's unix socket. The
// daemon pushes newline-delimited JSON events; the client sends fire-and-
// forget JSON commands. A lost connection is retried on a fixed backoff and
// surfaces only as a connectivity flag, never as an error to callers. Events
// are delivered from-now: nothing is replayed across a reconnect.
package ipc
