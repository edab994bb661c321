package events

// Events the engine pushes to connected clients.

const (
	TypeState    = "session.state"
	TypeProgress = "loop.progress"
	TypeError    = "session.error"
	TypeExport   = "export.done"
)

// StateEvent announces a session state transition. State is one of
// READY, RECORDING, PLAYING, STOPPED.
type StateEvent struct {
	BaseEvent
	State      string  `json:"state"`
	Layers     int     `json:"layers"`
	LoopLength float64 `json:"loop_length,omitempty"`
}

func NewStateEvent(state string, layers int, loopLength float64) StateEvent {
	return StateEvent{
		BaseEvent:  NewBaseEvent(TypeState),
		State:      state,
		Layers:     layers,
		LoopLength: loopLength,
	}
}

// ProgressEvent carries the current loop phase in [0, 1).
type ProgressEvent struct {
	BaseEvent
	Phase float64 `json:"phase"`
}

func NewProgressEvent(phase float64) ProgressEvent {
	return ProgressEvent{
		BaseEvent: NewBaseEvent(TypeProgress),
		Phase:     phase,
	}
}

// ErrorEvent is one human-readable notification per failed action.
type ErrorEvent struct {
	BaseEvent
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorEvent(code, message string) ErrorEvent {
	return ErrorEvent{
		BaseEvent: NewBaseEvent(TypeError),
		Code:      code,
		Message:   message,
	}
}

// ExportEvent announces a finished mixdown. The WAV bytes themselves
// travel as a binary frame; Bytes lets the client match it up.
type ExportEvent struct {
	BaseEvent
	Bytes int `json:"bytes"`
}

func NewExportEvent(n int) ExportEvent {
	return ExportEvent{
		BaseEvent: NewBaseEvent(TypeExport),
		Bytes:     n,
	}
}
