package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	clierr "github.com/gabrielantonyxaviour/moltrades/internal/errors"
	"github.com/gabrielantonyxaviour/moltrades/internal/metrics"
	"github.com/gabrielantonyxaviour/moltrades/internal/model"
	"github.com/rs/zerolog"
)

const (
	DefaultInterval       = 10 * time.Second
	DefaultTimeout        = 600 * time.Second
	DefaultRequestTimeout = 15 * time.Second
)

// StatusSource answers bridge status queries. *lifi.Client satisfies it.
type StatusSource interface {
	Status(ctx context.Context, key model.StatusKey) (model.StatusResponse, error)
}

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type Poller struct {
	source         StatusSource
	clock          Clock
	interval       time.Duration
	timeout        time.Duration
	requestTimeout time.Duration
	metrics        *metrics.Metrics
	log            zerolog.Logger
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.requestTimeout = d
		}
	}
}

func WithClock(c Clock) Option {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(p *Poller) { p.log = log }
}

func NewPoller(source StatusSource, opts ...Option) *Poller {
	p := &Poller{
		source:         source,
		clock:          realClock{},
		interval:       DefaultInterval,
		timeout:        DefaultTimeout,
		requestTimeout: DefaultRequestTimeout,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll queries the status service until the bridge leg is DONE or FAILED or
// the timeout elapses. The first query is immediate and the last one lands on
// the deadline. A timed out poll can be resumed with the same key.
func (p *Poller) Poll(ctx context.Context, key model.StatusKey) (model.BridgeOutcome, error) {
	if strings.TrimSpace(key.TxHash) == "" {
		return model.BridgeOutcome{}, clierr.New(clierr.CodeUsage, "status key requires a source tx hash")
	}
	start := p.clock.Now()
	deadline := start.Add(p.timeout)
	log := p.log.With().Str("tx_hash", key.TxHash).Str("bridge", key.Bridge).Logger()

	var (
		outcome    model.BridgeOutcome
		lastStatus string
	)
	for {
		outcome.Cycles++
		p.metrics.IncPollCycle()
		resp, err := p.query(ctx, key)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return p.finish(outcome, model.BridgeStatusPending, start), clierr.Wrap(clierr.CodeCancelled, "status polling cancelled", ctx.Err()).WithTxHash(key.TxHash)
			}
			if clierr.Is(err, clierr.CodeAuth) {
				return p.finish(outcome, model.BridgeStatusPending, start), err
			}
			log.Debug().Err(err).Int("cycle", outcome.Cycles).Msg("status query failed, retrying")
		case resp.Status == model.BridgeStatusDone:
			outcome.Substatus = resp.Substatus
			outcome.DestinationTxHash = resp.Receiving.TxHash
			log.Info().Str("substatus", resp.Substatus).Int("cycles", outcome.Cycles).Msg("bridge transfer completed")
			return p.finish(outcome, model.BridgeStatusDone, start), nil
		case resp.Status == model.BridgeStatusFailed:
			outcome.Substatus = resp.Substatus
			msg := "bridge reported FAILED"
			if resp.SubstatusMessage != "" {
				msg += ": " + resp.SubstatusMessage
			}
			return p.finish(outcome, model.BridgeStatusFailed, start), clierr.New(clierr.CodeBridgeFailed, msg).WithTxHash(key.TxHash)
		default:
			lastStatus = resp.Status
			outcome.Substatus = resp.Substatus
			log.Debug().Str("status", resp.Status).Int("cycle", outcome.Cycles).Msg("bridge transfer not final")
		}

		remaining := deadline.Sub(p.clock.Now())
		if remaining <= 0 {
			msg := fmt.Sprintf("bridge status not final after %s", p.timeout)
			if lastStatus != "" {
				msg += " (last status " + lastStatus + ")"
			}
			return p.finish(outcome, model.BridgeStatusTimeout, start), clierr.New(clierr.CodeStatusTimeout, msg).WithTxHash(key.TxHash)
		}
		wait := p.interval
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return p.finish(outcome, model.BridgeStatusPending, start), clierr.Wrap(clierr.CodeCancelled, "status polling cancelled", ctx.Err()).WithTxHash(key.TxHash)
		case <-p.clock.After(wait):
		}
	}
}

func (p *Poller) query(ctx context.Context, key model.StatusKey) (model.StatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()
	return p.source.Status(ctx, key)
}

func (p *Poller) finish(outcome model.BridgeOutcome, status string, start time.Time) model.BridgeOutcome {
	outcome.Status = status
	outcome.ElapsedSeconds = p.clock.Now().Sub(start).Seconds()
	p.metrics.IncPollOutcome(status)
	return outcome
}
