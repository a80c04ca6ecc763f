package assistant

// EventType tags the events emitted while a send is in flight.
type EventType string

const (
	// EventDelta carries a throttled snapshot of the cleaned buffer.
	EventDelta EventType = "delta"
	// EventDone carries the final cleaned content after completion.
	EventDone EventType = "done"
	// EventError replaces the assistant turn when the transport fails.
	EventError EventType = "error"
	// EventNotice reports a non-fatal problem, e.g. a failed save.
	EventNotice EventType = "notice"
	// EventCancelled signals the stream was aborted by the user or
	// superseded by a newer send.
	EventCancelled EventType = "cancelled"
)

// Event is one update pushed to the hosting UI during a send. The channel
// returned by Send delivers these and is closed once the stream is terminal.
type Event struct {
	Type      EventType `json:"type"`
	StreamID  string    `json:"stream_id"`
	Content   string    `json:"content,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}
