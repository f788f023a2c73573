// Package config defines the alarm panel settings and provides helpers to
// load, validate and save them in YAML format.
//
// Validate fills defaults and rejects conflicting pin assignments, such as an
// output used by two roles or a BCM pin mapped to both an input and an output.
package config
