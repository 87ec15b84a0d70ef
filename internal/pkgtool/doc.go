// SPDX-License-Identifier: MPL-2.0

// Package pkgtool provides an abstraction layer for the package installer
// tools the build shells out to: a pip-compatible installer for resolving
// the dependency manifest and an apt-compatible installer for the
// system-package layer.
//
// Installer tools are BUILD-time dependencies only. Nothing in the
// assembled runtime environment invokes them; the assembler rejects
// artifacts that still contain them.
package pkgtool
