// Package config loads, validates, and normalizes the TOML configuration
// used by the docflow daemon and CLI.
//
// Load resolves the config path (explicit flag, ~/.config/docflow/config.toml,
// then ./docflow.toml), merges the file over repository defaults, expands
// paths, and validates the result. A missing file yields the defaults so the
// daemon can run out of the box.
package config
