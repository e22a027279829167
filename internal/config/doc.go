// Package config loads, normalizes, and validates shelfscan configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SHELFSCAN_API_TOKEN and SHELFSCAN_INVENTORY_API_KEY. The Config type
// centralizes every knob the daemon and CLI need: scanner tuning, the camera
// source, and the inventory backend.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
