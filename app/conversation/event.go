package conversation

import "context"

// Kind enumerates the update kinds the engine understands.
type Kind int

const (
	KindCommand Kind = iota
	KindText
	KindVoice
	KindPhoto
)

// FileRef points at a file hosted by the messaging provider.
type FileRef struct {
	ID       string
	UniqueID string
}

// Event is a single transport-agnostic input to the state machine.
// Command carries the command name without the leading slash.
type Event struct {
	Kind    Kind
	Command string
	Text    string
	File    FileRef
}

// Result describes what the transport layer should do after a step.
// EchoVoice asks the handler to send the incoming voice note back.
type Result struct {
	Reply     string
	EchoVoice bool
	Handled   bool
}

// Student holds a completed registration before it is persisted.
type Student struct {
	Name  string
	Age   string
	Grade string
}

// StudentStore persists completed registrations.
type StudentStore interface {
	AddStudent(ctx context.Context, st Student) (int64, error)
}

// VoiceArchive stores voice notes and returns the resulting path.
type VoiceArchive interface {
	SaveVoice(ctx context.Context, file FileRef) (string, error)
}
