// Package gateway publishes validated debate events to the remote UI over a
// best-effort channel. Publishes are fire-and-forget with a fixed retry
// budget; a missing remote endpoint is a silent no-op, never an error. UI
// consistency is best-effort, not a correctness requirement of the debate.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/podiumhq/podium/internal/events"
)

// DefaultMaxAttempts is the per-publish attempt budget.
const DefaultMaxAttempts = 3

// ErrChannelUnavailable reports a transiently failed delivery attempt.
var ErrChannelUnavailable = errors.New("channel unavailable")

// Channel is the duplex transport to the remote UI.
type Channel interface {
	// Attached reports whether any remote endpoint is currently connected.
	Attached() bool
	// Send delivers one named payload; failures may be transient.
	Send(method string, payload []byte) error
}

// Config holds gateway settings.
type Config struct {
	// MaxAttempts is the per-publish attempt budget (not unbounded backoff).
	MaxAttempts int `yaml:"max_attempts"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxAttempts: DefaultMaxAttempts}
}

// Gateway forwards session bus events to the remote UI.
type Gateway struct {
	channel Channel
	bus     *events.Bus
	config  Config
	log     *logrus.Logger
	metrics *Metrics

	wg sync.WaitGroup
}

// New creates a gateway. A nil metrics gets an unregistered set.
func New(channel Channel, bus *events.Bus, config Config, logger *logrus.Logger, metrics *Metrics) *Gateway {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = logrus.New()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Gateway{
		channel: channel,
		bus:     bus,
		config:  config,
		log:     logger,
		metrics: metrics,
	}
}

// Run consumes the bus until the context is cancelled or the bus closes.
// Each event is delivered on its own goroutine so a slow channel never
// blocks the debate flow.
func (g *Gateway) Run(ctx context.Context) {
	sub := g.bus.Subscribe()
	defer g.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			g.wg.Wait()
			return
		case ev, ok := <-sub.Channel:
			if !ok {
				g.wg.Wait()
				return
			}
			g.wg.Add(1)
			go func(ev *events.Event) {
				defer g.wg.Done()
				g.deliver(ev)
			}(ev)
		}
	}
}

// Publish sends one event outside the bus path. Fire-and-forget: the error
// accounting is internal, callers never block on delivery confirmation.
func (g *Gateway) Publish(eventType events.EventType, payload interface{}) {
	g.deliver(events.NewEvent(eventType, payload))
}

func (g *Gateway) deliver(ev *events.Event) {
	if !g.channel.Attached() {
		// The UI may connect after the debate has started; nothing to do.
		g.metrics.NoEndpoint.Inc()
		return
	}

	raw, err := json.Marshal(ev.Payload)
	if err != nil {
		g.log.WithFields(logrus.Fields{"event": ev.Type, "error": err}).Error("Unmarshalable event payload")
		g.metrics.Dropped.Inc()
		return
	}

	err = withAttempts(g.config.MaxAttempts, func() error {
		return g.channel.Send(string(ev.Type), raw)
	}, func(attempt int, err error) {
		g.metrics.Retried.Inc()
		g.log.WithFields(logrus.Fields{
			"event":   ev.Type,
			"attempt": attempt,
			"error":   err,
		}).Debug("Publish attempt failed")
	})
	if err != nil {
		// Best-effort: give up silently after the budget.
		g.metrics.Dropped.Inc()
		g.log.WithFields(logrus.Fields{"event": ev.Type, "error": err}).Warn("Publish dropped after retries")
		return
	}
	g.metrics.Published.Inc()
}

// withAttempts runs fn up to max times, calling onRetry before each retry,
// and returns the final failure.
func withAttempts(max int, fn func() error, onRetry func(attempt int, err error)) error {
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt < max && onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return err
}
