// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// Two layers live here: ActionableError, a structured error carrying the
// failed operation, the resource involved, and remediation suggestions; and a
// small catalog of Markdown-rendered issues for the pipeline's fatal error
// classes (manifest resolution, assembly, asset acquisition), rendered with
// glamour for terminal display.
package issue
