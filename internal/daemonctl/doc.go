// Package daemonctl supervises the daemon's OS process through its PID file.
// Liveness is probed with a zero-effect signal; start launches the
// configured interpreter detached with output redirected to the daemon log;
// stop sends SIGTERM only. A daemon that ignores it requires external
// intervention; there is no escalation to SIGKILL.
package daemonctl
