// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"inferpack-cli/internal/assemble"
	"inferpack-cli/internal/config"
	"inferpack-cli/internal/probe"
	"inferpack-cli/pkg/types"

	"github.com/spf13/cobra"
)

var (
	probeURL      string
	probeArtifact string
	probeWatch    bool

	// probeCmd checks a running service against its liveness contract.
	probeCmd = &cobra.Command{
		Use:   "probe",
		Short: "Probe a running service's health endpoint",
		Long: `Probe a running service's health endpoint.

By default a single probe is sent and the result reported. With
--watch the prober keeps going: after the startup grace period it
probes every interval and declares the service unhealthy once the
consecutive-failure threshold is reached, exiting non-zero so an
external supervisor can restart the process.

The probe contract (path, interval, timeout, grace, threshold) comes
from configuration, or from an assembled environment's metadata when
--artifact is given.`,
		RunE: runProbe,
	}
)

func init() {
	probeCmd.Flags().StringVar(&probeURL, "url", "", "service base URL (default derived from config or artifact metadata)")
	probeCmd.Flags().StringVar(&probeArtifact, "artifact", "", "read the probe contract from this runtime environment")
	probeCmd.Flags().BoolVarP(&probeWatch, "watch", "w", false, "keep probing until unhealthy or interrupted")
}

func runProbe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	opts := probe.Options{
		Path:             cfg.Probe.Path,
		Interval:         cfg.Probe.ProbeInterval(),
		Timeout:          cfg.Probe.ProbeTimeout(),
		FailureThreshold: cfg.Probe.Threshold(),
		Logger:           logger,
	}
	baseURL := "http://" + net.JoinHostPort(dialHost(cfg.BindHost), strconv.Itoa(cfg.BindPort))
	grace := cfg.Probe.ProbeGrace()

	if probeArtifact != "" {
		meta, err := assemble.ReadMetadata(probeArtifact)
		if err != nil {
			return fmt.Errorf("failed to read artifact probe contract: %w", err)
		}
		if meta.Probe.Path != "" {
			opts.Path = meta.Probe.Path
		}
		pc := config.ProbeConfig{
			Interval:         meta.Probe.Interval,
			Timeout:          meta.Probe.Timeout,
			Grace:            meta.Probe.Grace,
			FailureThreshold: meta.Probe.FailureThreshold,
		}
		opts.Interval = pc.ProbeInterval()
		opts.Timeout = pc.ProbeTimeout()
		opts.FailureThreshold = pc.Threshold()
		grace = pc.ProbeGrace()
		baseURL = "http://" + net.JoinHostPort(dialHost(meta.Service.Host), strconv.Itoa(meta.Service.Port))
	}

	if probeWatch {
		opts.Grace = grace
	}
	if probeURL != "" {
		baseURL = strings.TrimRight(probeURL, "/")
	}
	opts.BaseURL = baseURL
	opts.OnRecord = printProbeRecord

	p := probe.New(opts)

	if !probeWatch {
		record := p.Once(ctx)
		if record.Healthy {
			fmt.Printf("%s %s healthy (%d)\n", SuccessStyle.Render("✓"), p.URL(), record.StatusCode)
			return nil
		}
		fmt.Printf("%s %s unhealthy: %v\n", ErrorStyle.Render("✗"), p.URL(), record.Err)
		return &ExitError{Code: types.ExitUnhealthy, Err: record.Err}
	}

	if err := p.Watch(ctx); err != nil {
		if errors.Is(err, probe.ErrUnhealthy) {
			return &ExitError{Code: types.ExitUnhealthy, Err: err}
		}
		return err
	}
	return nil
}

// printProbeRecord reports each watch attempt on one line.
func printProbeRecord(r probe.Record) {
	if r.Healthy {
		fmt.Printf("%s healthy (%d)\n", SuccessStyle.Render("✓"), r.StatusCode)
		return
	}
	fmt.Printf("%s unhealthy (%d consecutive): %v\n", ErrorStyle.Render("✗"), r.ConsecutiveFailures, r.Err)
}

// dialHost converts a wildcard bind address into a dialable one.
func dialHost(host string) string {
	switch host {
	case "", "0.0.0.0", "::":
		return "127.0.0.1"
	}
	return host
}
