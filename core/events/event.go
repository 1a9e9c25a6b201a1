package events

// Event represents a structured state change broadcast by the node.
type Event interface {
	EventType() string
}

// Emitter forwards events to downstream subscribers (logs, metrics, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wired into the engine so event emission is always optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
