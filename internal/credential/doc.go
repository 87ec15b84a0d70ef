// SPDX-License-Identifier: MPL-2.0

// Package credential handles the optional credential material a packaged
// service reads at runtime (e.g., a service-account key file).
//
// Credential contents are never logged, never hashed into cache keys, and
// never copied anywhere except the artifact root. This package only ever
// inspects metadata; the service process is the sole reader of the bytes.
package credential
