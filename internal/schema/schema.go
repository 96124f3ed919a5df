package schema

// EventType discriminates the variant carried by an Event.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventBar
	EventSignal
	EventFill
)

// EventHeader is the common metadata attached to every event.
type EventHeader struct {
	Type         EventType
	WallNanos    int64
	MonoNanos    int64
	CreatedNanos int64
}

// Event is a tagged variant. Exactly one payload field is meaningful,
// selected by Header.Type. Events are owned by the pool that produced them
// and must be released back to it exactly once.
type Event struct {
	Header EventHeader

	Bar    Bar
	Signal Signal
	Fill   Fill
}

// Reset clears the payloads so a recycled cell does not leak stale state.
func (e *Event) Reset() {
	e.Header = EventHeader{}
	e.Bar = Bar{}
	e.Signal = Signal{}
	e.Fill = Fill{}
}
