// Package config loads, validates, and normalizes thorn's TOML
// configuration. Defaults live in defaults.go; a documented sample config is
// embedded and written by 'thorn config init'.
package config
