// Package agent implements the client side of the remote city-information agent:
// bootstrap, dispatch, reply normalization and error classification.
package agent

import (
	"context"
	"time"
)

// ConnectionState is the outcome of the last bootstrap attempt.
type ConnectionState string

const (
	// StateConnected indicates a credentialed handle to the agent runtime exists.
	StateConnected ConnectionState = "connected"
	// StateAuthError indicates the platform rejected the credentials.
	StateAuthError ConnectionState = "auth_error"
	// StateAWSError indicates any other platform-side rejection.
	StateAWSError ConnectionState = "aws_error"
	// StateError indicates a local failure (missing profile, no network path).
	StateError ConnectionState = "error"
	// StateDisconnected is the state before Initialize has run.
	StateDisconnected ConnectionState = "disconnected"
)

// ConnectionStatus describes the client's handle to the agent runtime.
// It is handed out by value; Region and AgentARN never change after construction.
type ConnectionStatus struct {
	State    ConnectionState `json:"status"`
	Verified bool            `json:"verified"`
	Error    string          `json:"error,omitempty"`
	Region   string          `json:"region"`
	AgentARN string          `json:"agent_arn"`
}

// Connected reports whether bootstrap produced a usable handle.
func (s ConnectionStatus) Connected() bool {
	return s.State == StateConnected
}

// Identity is the caller identity reported by the platform during bootstrap.
type Identity struct {
	Account string `json:"account"`
	ARN     string `json:"arn"`
	UserID  string `json:"user_id"`
}

// Metadata carries dispatch details of a successful query.
type Metadata struct {
	RequestID  string `json:"request_id,omitempty"`
	HTTPStatus int    `json:"http_status,omitempty"`
	AgentARN   string `json:"agent_arn"`
	Region     string `json:"region"`
	SessionID  string `json:"session_id,omitempty"`
}

// ErrorInfo is the user-presentable description of a failure.
type ErrorInfo struct {
	Type       string   `json:"type"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Category   Category `json:"category"`
	Retryable  bool     `json:"retryable"`
	Guidance   string   `json:"guidance"`
	RawMessage string   `json:"raw_message,omitempty"`
}

// StandardResponse is the envelope returned by every query. Exactly one of
// Data/Metadata or Error is populated, selected by Success.
type StandardResponse struct {
	Success   bool       `json:"success"`
	Timestamp time.Time  `json:"timestamp"`
	Data      string     `json:"data,omitempty"`
	Metadata  *Metadata  `json:"metadata,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
}

// ProbeResult is the outcome of TestConnection.
type ProbeResult struct {
	Success      bool       `json:"success"`
	Message      string     `json:"message,omitempty"`
	ResponseTime *time.Time `json:"response_time,omitempty"`
	Error        *ErrorInfo `json:"error,omitempty"`
}

// InvokeRequest is a single outbound call to the agent runtime.
type InvokeRequest struct {
	Payload   []byte
	SessionID string
}

// Invocation is the raw reply of the agent runtime.
type Invocation struct {
	Body        []byte
	ContentType string
	RequestID   string
	HTTPStatus  int
	SessionID   string
}

// Invoker sends one request to the agent runtime and returns its raw reply.
type Invoker interface {
	Invoke(ctx context.Context, req InvokeRequest) (*Invocation, error)
}

// Handle is the credentialed connection produced by a Bootstrapper.
type Handle struct {
	Invoker  Invoker
	Identity Identity
}

// Bootstrapper acquires and verifies a Handle.
type Bootstrapper interface {
	Bootstrap(ctx context.Context) (*Handle, error)
}
