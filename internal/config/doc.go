// Package config defines the deployer settings and provides helpers to load,
// validate and save them in YAML format.
//
// Every field has a default, so a missing settings file is not an error for
// Load: the built-in bundle description is used as is.
package config
