// Package config loads server configuration from built-in defaults, an optional
// JSON or YAML file, and CANTEEN_* environment variables, in that order.
package config
