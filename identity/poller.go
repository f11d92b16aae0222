package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lborres/vouch/core"
)

// ErrStillPending is returned when the polling window closes before the user
// finished the DigiLocker flow. It matches core.ErrTimeout.
var ErrStillPending = fmt.Errorf("%w: verification still pending", core.ErrTimeout)

// ResultFetcher is the single status check the poller repeats.
type ResultFetcher interface {
	FetchResult(ctx context.Context, sessionID string) (*core.VerificationResult, error)
}

// Poller repeats FetchResult with exponential backoff until the session
// resolves, a hard failure occurs, or the window closes. Pending and
// provider timeouts are retried, everything else stops immediately.
type Poller struct {
	fetcher ResultFetcher
	cfg     core.PollConfig
	logger  *slog.Logger
}

func NewPoller(fetcher ResultFetcher, cfg core.PollConfig, logger *slog.Logger) *Poller {
	d := core.DefaultPollConfig()
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = d.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = d.MaxInterval
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = d.MaxElapsed
	}
	return &Poller{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  core.Logger(logger).With("component", "identity.poller"),
	}
}

func (p *Poller) Poll(ctx context.Context, sessionID string) (*core.VerificationResult, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialInterval
	b.MaxInterval = p.cfg.MaxInterval
	b.MaxElapsedTime = p.cfg.MaxElapsed
	b.Reset()

	attempt := 0
	op := func() (*core.VerificationResult, error) {
		attempt++
		res, err := p.fetcher.FetchResult(ctx, sessionID)
		switch {
		case errors.Is(err, core.ErrTimeout):
			return nil, err
		case err != nil:
			return nil, backoff.Permanent(err)
		case res == nil, res.Pending():
			return nil, ErrStillPending
		}
		return res, nil
	}

	notify := func(err error, wait time.Duration) {
		p.logger.Debug("verification not ready", "session_id", sessionID, "attempt", attempt, "retry_in", wait, "reason", err)
	}

	res, err := backoff.RetryNotifyWithData(op, backoff.WithContext(b, ctx), notify)
	if err != nil {
		p.logger.Info("polling stopped", "session_id", sessionID, "attempts", attempt, "error", err)
		return nil, err
	}
	return res, nil
}
