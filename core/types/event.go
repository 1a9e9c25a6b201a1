package types

// Event is the wire representation of a structured notification emitted by a
// state transition. Attribute values are stringified so downstream consumers
// never need the engine's numeric types.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
