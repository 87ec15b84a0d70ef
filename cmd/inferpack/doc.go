// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for inferpack.
//
// This package implements the Cobra command hierarchy for the inferpack
// CLI: building runtime environments from a stagefile, bootstrapping and
// running the packaged service, probing its health endpoint, and managing
// configuration.
package cmd
