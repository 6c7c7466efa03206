// Package config loads the runtime configuration of freeslot from the
// environment.
//
// Every setting has a default so the server can start with no environment at
// all; Load returns a Config that has already passed Validate.
package config
