// Package config loads and validates the client's TOML configuration. All
// daemon file locations derive from a single state directory unless
// individually overridden.
package config
