// Package state provides a per-user session store for multi-step
// Telegram conversations. It is domain-agnostic: flow packages define
// their own State values and field names.
package state

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores the conversation state and the fields collected so far.
type Session struct {
	State  State
	Fields map[string]string
}

// Manager orchestrates user sessions. Implementations must be safe for
// concurrent use; handlers for distinct users may run on separate goroutines.
type Manager interface {
	GetState(userID int64) State
	SetState(userID int64, st State)
	SetField(userID int64, key, value string)
	GetField(userID int64, key string) (string, bool)
	Fields(userID int64) map[string]string
	Clear(userID int64)

	// InProgress reports whether the user currently has an active state.
	InProgress(userID int64) bool
}
