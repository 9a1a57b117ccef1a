package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrReadinessTimeout indicates the gateway never printed its readiness
// marker within the polling budget.
var ErrReadinessTimeout = errors.New("gateway did not become ready")

// Readiness polling defaults. The marker is the line the gateway prints once
// its listener is accepting connections.
const (
	DefaultReadyMarker   = "Gateway server listening"
	DefaultReadyAttempts = 30
	DefaultReadyInterval = 2 * time.Second

	logTailLines = 250
)

// LogSource returns a bounded tail of the gateway's log stream.
type LogSource func(ctx context.Context, tail int) (string, error)

// Monitor polls the gateway's logs until the readiness marker appears.
type Monitor struct {
	marker   string
	attempts int
	interval time.Duration
	logs     LogSource
	logger   *logrus.Entry
}

// MonitorConfig holds readiness polling settings. Zero values fall back to
// the package defaults.
type MonitorConfig struct {
	Marker   string
	Attempts int
	Interval time.Duration
}

// NewMonitor creates a readiness monitor reading from the given log source.
func NewMonitor(cfg MonitorConfig, logs LogSource, logger *logrus.Logger) *Monitor {
	if cfg.Marker == "" {
		cfg.Marker = DefaultReadyMarker
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultReadyAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultReadyInterval
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Monitor{
		marker:   cfg.Marker,
		attempts: cfg.Attempts,
		interval: cfg.Interval,
		logs:     logs,
		logger:   logger.WithField("component", "gateway"),
	}
}

// WaitReady blocks until the readiness marker shows up in the log tail, the
// attempt budget runs out, or ctx is cancelled. A transient log read failure
// consumes an attempt rather than aborting: the service may still be coming
// up.
func (m *Monitor) WaitReady(ctx context.Context) error {
	m.logger.WithFields(logrus.Fields{
		"marker":   m.marker,
		"attempts": m.attempts,
	}).Info("Waiting for gateway to become ready")

	for attempt := 1; attempt <= m.attempts; attempt++ {
		tail, err := m.logs(ctx, logTailLines)
		if err != nil {
			m.logger.WithError(err).WithField("attempt", attempt).Debug("Log read failed")
		} else if strings.Contains(tail, m.marker) {
			m.logger.WithField("attempt", attempt).Info("Gateway is ready")
			return nil
		}

		if attempt == m.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.interval):
		}
	}

	return ErrReadinessTimeout
}
