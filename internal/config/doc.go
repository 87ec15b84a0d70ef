// SPDX-License-Identifier: MPL-2.0

// Package config loads inferpack's process configuration.
//
// Configuration is read once at process start and handed to components as an
// explicit *Config — nothing reads settings ad hoc afterwards. Precedence is
// flags > INFERPACK_* environment variables > CUE config file (validated
// against an embedded schema) > defaults.
package config
