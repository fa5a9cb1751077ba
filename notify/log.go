package notify

import (
	"context"

	"github.com/dnldd/orb/shared"
	"github.com/rs/zerolog"
)

// LogSink writes events to the application log.
type LogSink struct {
	logger *zerolog.Logger
}

// NewLogSink initializes a new log sink.
func NewLogSink(logger *zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Name identifies the sink.
func (s *LogSink) Name() string {
	return "log"
}

// Deliver logs the provided event.
func (s *LogSink) Deliver(ctx context.Context, event shared.Event) error {
	var entry *zerolog.Event
	switch event.Kind {
	case shared.EventError:
		entry = s.logger.Error()
	case shared.EventHalted, shared.EventForceExit:
		entry = s.logger.Warn()
	default:
		entry = s.logger.Info()
	}

	entry.Str("event", event.Name).
		Str("market", event.Market).
		Time("at", event.Time)
	if event.Price != 0 {
		entry.Float64("price", event.Price)
	}
	if event.Quantity != 0 {
		entry.Int64("quantity", event.Quantity)
	}
	if event.PNL != 0 {
		entry.Float64("pnl", event.PNL)
	}
	entry.Msg(event.Message)

	return nil
}
