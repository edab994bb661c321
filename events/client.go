package events

// Commands a client sends to the engine.

const (
	CmdRecordStart    = "record.start"
	CmdRecordStop     = "record.stop"
	CmdPlaybackToggle = "playback.toggle"
	CmdUndo           = "undo"
	CmdClear          = "clear"
	CmdExport         = "export"
)

type CommandEvent struct {
	BaseEvent
}

func NewCommandEvent(cmd string) CommandEvent {
	return CommandEvent{BaseEvent: NewBaseEvent(cmd)}
}
