// SPDX-License-Identifier: MPL-2.0

// Package stagefile defines the declarative build recipe for an inference
// service artifact.
//
// A stagefile is a CUE document (conventionally "stagefile.cue") validated
// against an embedded schema. It declares the four build layers in order of
// volatility — system packages, the dependency manifest, application source,
// credential material — plus the external asset reference resolved at first
// process start, the service run contract, and the liveness probe settings.
//
// The historical recipe variants (with/without runtime asset download,
// with/without health check, single- vs two-phase) are all expressible as
// field choices in one stagefile rather than as separate recipes.
package stagefile
