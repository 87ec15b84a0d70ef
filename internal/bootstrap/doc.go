// SPDX-License-Identifier: MPL-2.0

// Package bootstrap runs the startup sequence of a packaged service: check
// whether the external asset is present, acquire it if allowed, and hand
// off to serving.
//
// The sequence is a one-way state machine. It has no internal retries and
// no internal timeout: a failed acquisition moves to the terminal failed
// state and the process exits non-zero, leaving restart policy to the
// supervisor.
package bootstrap
