// Package config defines the options of an archivist run, their defaults,
// the .archivist YAML file with per-domain overrides and the .env file that
// carries the archive login cookies.
package config
