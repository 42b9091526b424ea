// Package config provides configuration management for the subsync application.
//
// Settings are resolved in three layers, later layers winning:
//
//  1. compiled-in defaults (New)
//  2. SUBSYNC_* environment variables (LoadFromEnvironment), plus NO_COLOR
//  3. command-line flags bound on a pflag.FlagSet (BindFlags)
//
// Finalize validates the result, normalizes the sub-path filter, compiles the
// upstream summary pattern and derives the default debug log location. All
// validation failures are ConfigErrors wrapping ErrInvalidConfiguration.
package config
