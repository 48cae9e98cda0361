// Package config loads the client configuration from YAML.
//
// Files support ${VAR} environment variable interpolation. Every field is
// optional; missing values fall back to the defaults in defaults.go, which
// match the reference dashboard (ws://localhost:8081, 3s reconnect delay,
// 5s command feedback, 50 logged messages).
package config
