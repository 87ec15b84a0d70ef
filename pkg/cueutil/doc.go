// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared helpers for parsing CUE files against
// embedded schemas. Both the stagefile and the process configuration are
// CUE documents; this package owns the compile → unify → validate → decode
// flow and the error formatting that turns CUE diagnostics into readable
// file:path:message lines.
package cueutil
