// SPDX-License-Identifier: MPL-2.0

// Package manifest loads and validates the dependency manifest, the YAML
// file that declares which runtime packages the service needs and under
// which version constraints.
//
// The manifest's content hash is the cache key for the resolved dependency
// bundle: byte-identical manifests always map to the same bundle directory.
package manifest
