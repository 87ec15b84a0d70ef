// SPDX-License-Identifier: MPL-2.0

// Package server is the built-in reference inference service. Stagefiles
// that declare no exec argv get this server: it binds the configured
// host/port, answers the liveness path, and exposes a detection endpoint
// backed by the runtime-acquired weights asset.
//
// The detector is a deterministic stand-in for a real model: it refuses to
// run without a non-empty weights file and derives stable pseudo
// detections from the input image bytes, which is enough to exercise the
// full build, bootstrap, and probe surface end to end.
package server
