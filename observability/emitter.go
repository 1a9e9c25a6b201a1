package observability

import (
	"log/slog"

	"bancornode/core/events"
	"bancornode/core/types"
)

// EventRecorder is an events.Emitter that logs each emitted event and bumps
// the event counter. It is the node's default downstream sink; richer delivery
// (indexers, websockets) would hang off the same Emitter interface.
type EventRecorder struct {
	logger *slog.Logger
}

// NewEventRecorder constructs a recorder writing through the supplied logger.
// A nil logger falls back to slog.Default.
func NewEventRecorder(logger *slog.Logger) *EventRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventRecorder{logger: logger}
}

// Emit implements the events.Emitter interface.
func (r *EventRecorder) Emit(evt events.Event) {
	if r == nil || evt == nil {
		return
	}
	Curve().RecordEvent(evt.EventType())
	attrs := []any{slog.String("type", evt.EventType())}
	if typed, ok := evt.(interface{ Event() *types.Event }); ok {
		if wire := typed.Event(); wire != nil {
			for key, value := range wire.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	r.logger.Info("event emitted", attrs...)
}
