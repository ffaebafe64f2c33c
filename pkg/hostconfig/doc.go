// Package hostconfig resolves viewer configuration from the places a host
// keeps it: .env files, process environment variables and an optional YAML
// file. Credentials are validated once, up front, and every missing value is
// reported in a single descriptive error.
package hostconfig
