// Package config loads the live quote client configuration.
//
// Sources, lowest precedence first:
//   - built-in defaults (defaults.go)
//   - an optional YAML file, with ${VAR} expansion
//   - a .env file in the working directory, if present
//   - environment overrides: STELLAR_API_URL, REDIS_URL,
//     LIVEQUOTE_CHANNEL, LIVEQUOTE_DB_PASSWORD
package config
