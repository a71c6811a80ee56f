// Package config loads, normalizes, and validates bd3d configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BD3D_WORK_DIR and FRIMENCODE_PATH. The Config type centralizes every knob
// the pipeline needs: tool binaries, chunking and bitrate limits for the
// stereoscopic encode, multiplexer options, and validation tolerances.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
