// SPDX-License-Identifier: MPL-2.0

// Package probe implements the liveness contract published with an
// artifact: GET the health path every interval, each attempt bounded by a
// timeout, after an initial grace period. A run of consecutive failures
// reaching the threshold declares the service unhealthy.
//
// The prober only observes and reports. It never restarts anything; that
// belongs to the supervisor running the process.
package probe
