// Package config declares the action controller's option groups on a
// registry and exposes them as a typed Config. Values resolve with
// precedence: CLI flags > environment variables > YAML config > defaults.
package config
