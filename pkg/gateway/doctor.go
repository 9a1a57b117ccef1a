package gateway

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Service is the slice of the container driver the repairer needs.
type Service interface {
	Exec(ctx context.Context, command ...string) ([]byte, error)
	Restart(ctx context.Context) error
}

const defaultSettle = 3 * time.Second

// Repairer runs the gateway's built-in doctor once after the first boot. A
// fresh container may have written its state files before the seeded config
// landed; the doctor reconciles them in place, and a restart makes the
// repaired config take effect.
type Repairer struct {
	service Service
	settle  time.Duration
	logger  *logrus.Entry
}

// NewRepairer creates a repairer for the given service. A zero settle falls
// back to the default pause.
func NewRepairer(service Service, settle time.Duration, logger *logrus.Logger) *Repairer {
	if settle <= 0 {
		settle = defaultSettle
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Repairer{
		service: service,
		settle:  settle,
		logger:  logger.WithField("component", "doctor"),
	}
}

// Run executes the doctor pass and restarts the service. A failed doctor is
// logged and skipped over, the gateway usually runs fine without it; a failed
// restart is fatal because the container state is then unknown.
func (r *Repairer) Run(ctx context.Context) error {
	r.logger.Info("Running first-boot configuration repair")
	if out, err := r.service.Exec(ctx, "openclaw", "doctor", "--fix", "--yes"); err != nil {
		r.logger.WithError(err).WithField("output", string(out)).Warn("Doctor pass failed, continuing")
	}

	if err := r.service.Restart(ctx); err != nil {
		return err
	}

	// Give the restarted process a moment before readiness polling resumes.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.settle):
	}
	return nil
}
