// Package config resolves server settings from flags, environment
// variables, and an optional TOML file, in that order of precedence.
package config
