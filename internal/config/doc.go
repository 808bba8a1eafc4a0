// Package config defines the optional expo-up settings file and provides
// helpers to load and validate it in YAML format.
//
// Every field has a default, so a project without expo-up.yaml works out of
// the box; the file only tunes the output directory, env file, endpoint path,
// network timeout and log level.
package config
