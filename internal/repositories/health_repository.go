package repositories

import (
	"context"
	"errors"
	"time"
)

const defaultPingTimeout = 1500 * time.Millisecond

// PingFunc probes a downstream dependency.
type PingFunc func(ctx context.Context) error

// PingHealthOption customises the ping-backed health repository.
type PingHealthOption func(*pingHealthRepository)

// WithPingTimeout overrides the timeout applied to each probe.
func WithPingTimeout(timeout time.Duration) PingHealthOption {
	return func(repo *pingHealthRepository) {
		if timeout > 0 {
			repo.timeout = timeout
		}
	}
}

type pingHealthRepository struct {
	ping    PingFunc
	timeout time.Duration
}

var _ HealthRepository = (*pingHealthRepository)(nil)

// NewPingHealthRepository constructs a HealthRepository that runs the supplied
// probe with a bounded timeout.
func NewPingHealthRepository(ping PingFunc, opts ...PingHealthOption) (HealthRepository, error) {
	if ping == nil {
		return nil, errors.New("health repository: ping function is required")
	}

	repo := &pingHealthRepository{
		ping:    ping,
		timeout: defaultPingTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}

	return repo, nil
}

func (r *pingHealthRepository) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("health repository: context is required")
	}

	probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.ping(probeCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.New("health repository: dependency probe timed out")
		}
		return err
	}
	return nil
}
