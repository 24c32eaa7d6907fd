package internal

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn. Turns are never edited after they are appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatHistory struct {
	Messages []Message `json:"messages"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type SendMessageResponse struct {
	Reply Message `json:"reply"`
	Model string  `json:"model"`
}

// --- Knowledge base ---

type KnowledgeInfo struct {
	Name     string    `json:"name,omitempty"`
	Chars    int       `json:"chars"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}

type SessionResponse struct {
	State      string        `json:"state"`
	Source     string        `json:"source"`
	Knowledge  KnowledgeInfo `json:"knowledge"`
	Diagnostic string        `json:"diagnostic,omitempty"`
}

type UploadResponse struct {
	State      string        `json:"state"`
	Knowledge  KnowledgeInfo `json:"knowledge"`
	Diagnostic string        `json:"diagnostic,omitempty"`
}
