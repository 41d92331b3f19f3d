// Package config loads, normalizes, and validates mediaworker configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// worker and controller need: workspace and state directories, the worker
// binary and frame chunk bound, and the explicit settings handed to the
// download and transcription collaborators.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
