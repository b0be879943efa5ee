// Package config loads application configuration from defaults, an optional
// config.yaml, a .env file and LEXIS_-prefixed environment variables, and
// validates the result.
package config
