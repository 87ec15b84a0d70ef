// SPDX-License-Identifier: MPL-2.0

// Package assemble composes the runtime environment from the build
// pipeline's outputs: the resolved dependency bundle, the staged source
// tree, optional credential material, and a metadata file describing the
// run contract.
//
// The assembled environment is the deployable artifact. It must be able to
// start the service without any build tooling present, and Verify enforces
// that boundary by rejecting artifacts that still contain resolver tools
// or package-manager caches.
package assemble
