package domain

import "time"

// Role identifies who authored a message. The engine only ever deals with
// two variants, so switches over it can be exhaustive.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the two known variants.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message represents one turn of a conversation. StreamID and IsStreaming
// are only set while an assistant turn is being filled by an active stream;
// neither is persisted.
type Message struct {
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	StreamID    string    `json:"-"`
	IsStreaming bool      `json:"is_streaming,omitempty"`
}

// ChatSession represents one persisted conversation. ID is empty until the
// session has been saved for the first time and is assigned at most once.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionSummary is the list-view projection of a stored session.
type SessionSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SendRequest is the request to send a user message to the assistant.
type SendRequest struct {
	Message string `json:"message" binding:"required"`
}

// LoadRequest is the request to load a stored session into a conversation.
type LoadRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// ConversationView is the read model exposed to the hosting UI.
type ConversationView struct {
	SessionID   string    `json:"session_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Messages    []Message `json:"messages"`
	IsStreaming bool      `json:"is_streaming"`
}
