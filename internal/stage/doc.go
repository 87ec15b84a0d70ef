// SPDX-License-Identifier: MPL-2.0

// Package stage runs the build pipeline: the ordered, cacheable steps that
// turn a stagefile into the inputs of a runtime artifact.
//
// Steps run in a fixed order (system packages, dependency resolution,
// source staging, credential staging, hooks). Each cacheable step derives a
// content-hash key from its declared inputs; when a cache entry for that
// key already exists the step is skipped and the entry is reused. A change
// to one step's inputs invalidates that step and the steps after it, never
// the steps before it.
package stage
