package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/orb/metrics"
	"github.com/dnldd/orb/shared"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const (
	// bufferSize is the default buffer size for channels.
	bufferSize = 64
	// deliveryTimeout bounds a single sink delivery.
	deliveryTimeout = time.Second * 5
)

// Sink delivers trader events to an operator.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string
	// Deliver delivers the provided event.
	Deliver(ctx context.Context, event shared.Event) error
}

// NotifierConfig represents the configuration of the notifier.
type NotifierConfig struct {
	// Sinks are the event destinations.
	Sinks []Sink
	// Metrics records dropped events, optional.
	Metrics *metrics.Metrics
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *NotifierConfig) Validate() error {
	var errs error

	if len(cfg.Sinks) == 0 {
		errs = errors.Join(errs, fmt.Errorf("at least one sink is required"))
	}
	for idx := range cfg.Sinks {
		if cfg.Sinks[idx] == nil {
			errs = errors.Join(errs, fmt.Errorf("sink %d cannot be nil", idx))
		}
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Notifier fans trader events out to operator sinks without blocking the trader.
type Notifier struct {
	cfg     *NotifierConfig
	events  chan shared.Event
	dropped atomic.Int64
}

// NewNotifier initializes a new notifier.
func NewNotifier(cfg *NotifierConfig) (*Notifier, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Notifier{
		cfg:    cfg,
		events: make(chan shared.Event, bufferSize),
	}, nil
}

// Notify queues the provided event for delivery. Events are dropped when the queue is full.
func (n *Notifier) Notify(event shared.Event) {
	select {
	case n.events <- event:
		// do nothing.
	default:
		n.dropped.Inc()
		n.cfg.Metrics.ObserveDroppedEvent()
		n.cfg.Logger.Error().Msgf("event channel at capacity: %d/%d, dropping %s event",
			len(n.events), bufferSize, event.Name)
	}
}

// Dropped returns the number of events dropped at capacity.
func (n *Notifier) Dropped() int64 {
	return n.dropped.Load()
}

// deliver hands the provided event to every sink.
func (n *Notifier) deliver(ctx context.Context, event shared.Event) {
	for _, sink := range n.cfg.Sinks {
		dctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		err := sink.Deliver(dctx, event)
		cancel()
		if err != nil {
			n.cfg.Logger.Error().Msgf("delivering %s event to %s: %v", event.Name, sink.Name(), err)
		}
	}
}

// Run manages the lifecycle processes of the notifier. Events queued when the context is
// done are still delivered.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case event := <-n.events:
					n.deliver(context.Background(), event)
				default:
					return
				}
			}
		case event := <-n.events:
			n.deliver(ctx, event)
		}
	}
}
