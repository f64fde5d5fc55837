// Package config loads, normalizes, and validates siren configuration data.
//
// It supplies defaults rooted in the XDG directories (music, state, config),
// expands tilde paths, reads TOML files, loads a .env file from the working
// directory, and applies SIREN_* environment overrides. The Config type
// gathers every knob the CLI, the API client, and the download workflow need.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
