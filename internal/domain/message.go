// Package domain holds the chat transcript types shared by the HTTP and
// WebSocket surfaces.
package domain

import (
	"time"

	"github.com/ashureev/cityagent/internal/agent"
)

// Role identifies the author of a ChatMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of a session transcript.
type ChatMessage struct {
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *agent.Metadata  `json:"metadata,omitempty"`
	ErrorInfo *agent.ErrorInfo `json:"error_info,omitempty"`
}

// IsError reports whether the message renders an agent failure.
func (m ChatMessage) IsError() bool {
	return m.ErrorInfo != nil
}
