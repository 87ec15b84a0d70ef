// SPDX-License-Identifier: MPL-2.0

package stagefile

import (
	"fmt"
	"time"
)

// Probe timing defaults, applied when the stagefile leaves a field empty.
const (
	DefaultProbeInterval  = 30 * time.Second
	DefaultProbeTimeout   = 3 * time.Second
	DefaultProbeGrace     = 10 * time.Second
	DefaultProbeThreshold = 3
)

// parseDuration parses a Go duration string and rejects zero or negative
// values. Returns (0, nil) when value is empty (caller applies the default).
// fieldName is used in error messages (e.g., "probe.interval").
func parseDuration(fieldName, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", fieldName, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", fieldName, value)
	}
	return d, nil
}

// IntervalDuration returns the probe interval, or DefaultProbeInterval when unset.
func (p Probe) IntervalDuration() time.Duration {
	d, err := parseDuration("probe.interval", p.Interval)
	if err != nil || d == 0 {
		return DefaultProbeInterval
	}
	return d
}

// TimeoutDuration returns the per-request probe timeout, or DefaultProbeTimeout when unset.
func (p Probe) TimeoutDuration() time.Duration {
	d, err := parseDuration("probe.timeout", p.Timeout)
	if err != nil || d == 0 {
		return DefaultProbeTimeout
	}
	return d
}

// GraceDuration returns the startup grace period, or DefaultProbeGrace when unset.
func (p Probe) GraceDuration() time.Duration {
	d, err := parseDuration("probe.grace", p.Grace)
	if err != nil || d == 0 {
		return DefaultProbeGrace
	}
	return d
}

// Threshold returns the consecutive-failure threshold, or DefaultProbeThreshold when unset.
func (p Probe) Threshold() int {
	if p.FailureThreshold <= 0 {
		return DefaultProbeThreshold
	}
	return p.FailureThreshold
}
