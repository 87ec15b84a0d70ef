// SPDX-License-Identifier: MPL-2.0

package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"resty.dev/v3"
)

// ErrUnhealthy is returned by Watch when the failure threshold is reached.
var ErrUnhealthy = errors.New("service unhealthy")

type (
	// Options configures a Prober.
	Options struct {
		// BaseURL is the service root, e.g. "http://127.0.0.1:8000".
		BaseURL string
		// Path is the health endpoint path.
		Path string
		// Interval is the time between probe attempts.
		Interval time.Duration
		// Timeout bounds each attempt.
		Timeout time.Duration
		// Grace is the initial period during which failures are expected
		// and not counted.
		Grace time.Duration
		// FailureThreshold is the consecutive-failure count that declares
		// the service unhealthy.
		FailureThreshold int
		// Client overrides the HTTP client, mainly for tests.
		Client *resty.Client
		// OnRecord, when set, observes every probe attempt.
		OnRecord func(Record)
		// Logger receives probe progress. Nil uses the default logger.
		Logger *log.Logger
	}

	// Record is the outcome of one probe attempt.
	Record struct {
		// Time is when the attempt started.
		Time time.Time
		// Healthy is true for a 2xx response within the timeout.
		Healthy bool
		// StatusCode is the HTTP status (0 when the request failed).
		StatusCode int
		// Err carries the transport error, if any.
		Err error
		// ConsecutiveFailures is the failure run length after this attempt.
		ConsecutiveFailures int
	}

	// Prober drives liveness checks against one service.
	Prober struct {
		opts   Options
		client *resty.Client
		logger *log.Logger
	}
)

// New creates a prober. Zero interval, timeout, and threshold get the
// published defaults (30s, 3s, 3). Grace is taken as given: zero means
// probing starts immediately.
func New(opts Options) *Prober {
	if opts.Path == "" {
		opts.Path = "/healthz"
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Grace < 0 {
		opts.Grace = 10 * time.Second
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	client := opts.Client
	if client == nil {
		client = resty.New()
	}
	client.SetTimeout(opts.Timeout)
	return &Prober{opts: opts, client: client, logger: logger}
}

// URL returns the full probe target.
func (p *Prober) URL() string {
	return p.opts.BaseURL + p.opts.Path
}

// Once performs a single probe attempt, ignoring grace and threshold.
func (p *Prober) Once(ctx context.Context) Record {
	record := Record{Time: time.Now()}

	res, err := p.client.R().SetContext(ctx).Get(p.URL())
	if err != nil {
		record.Err = err
		return record
	}
	record.StatusCode = res.StatusCode()
	record.Healthy = res.IsSuccess()
	if !record.Healthy {
		record.Err = fmt.Errorf("unexpected status %s", res.Status())
	}
	return record
}

// Watch probes until ctx is canceled or the service is declared
// unhealthy. The grace period elapses first; failures inside it are
// observed but never counted. Returns nil on cancellation and
// ErrUnhealthy once FailureThreshold consecutive failures accumulate.
func (p *Prober) Watch(ctx context.Context) error {
	if p.opts.Grace > 0 {
		p.logger.Info("waiting out startup grace period", "grace", p.opts.Grace.String())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.opts.Grace):
		}
	}

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	consecutive := 0
	for {
		record := p.Once(ctx)
		if record.Healthy {
			consecutive = 0
		} else {
			consecutive++
		}
		record.ConsecutiveFailures = consecutive

		if p.opts.OnRecord != nil {
			p.opts.OnRecord(record)
		}
		if record.Healthy {
			p.logger.Debug("probe ok", "status", record.StatusCode)
		} else {
			p.logger.Warn("probe failed",
				"status", record.StatusCode,
				"consecutive", consecutive,
				"threshold", p.opts.FailureThreshold,
				"err", record.Err)
		}

		if consecutive >= p.opts.FailureThreshold {
			return fmt.Errorf("%w: %d consecutive probe failures against %s", ErrUnhealthy, consecutive, p.URL())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
