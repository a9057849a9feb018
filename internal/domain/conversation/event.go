package conversation

// EventKind classifies an inbound user event
type EventKind string

const (
	EventStart   EventKind = "start"
	EventHelp    EventKind = "help"
	EventCancel  EventKind = "cancel"
	EventPhoto   EventKind = "photo"
	EventText    EventKind = "text"
	EventCommand EventKind = "command" // unrecognized slash command
	EventOther   EventKind = "other"
)

func (k EventKind) String() string {
	return string(k)
}

// Event is one inbound user action
type Event struct {
	Kind    EventKind
	Text    string
	Command string
	Photo   *PhotoRef
}

// ReplyKind selects an outgoing message template
type ReplyKind string

const (
	ReplyWelcome      ReplyKind = "welcome"
	ReplyHelp         ReplyKind = "help"
	ReplyAskSize      ReplyKind = "ask_size"
	ReplyInvalidSize  ReplyKind = "invalid_size"
	ReplyAskQuality   ReplyKind = "ask_quality"
	ReplyProcessing   ReplyKind = "processing"
	ReplyResult       ReplyKind = "result"
	ReplyError        ReplyKind = "error"
	ReplyCancelled    ReplyKind = "cancelled"
	ReplyInvalidInput ReplyKind = "invalid_input"
)

func (k ReplyKind) String() string {
	return string(k)
}

// Reply is an outgoing text message
type Reply struct {
	Kind   ReplyKind
	Detail string  // error cause for ReplyError
	Report *Report // sizes and ratio for ReplyResult
}
