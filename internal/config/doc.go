// Package config loads, normalizes, and validates tracktap configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads optional .env files, and honours
// environment fallbacks such as SPOTIFY_REFRESH_TOKEN. The Config type
// centralizes every knob the CLI and the control panel need, from output
// directories to the capture timing policy.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
