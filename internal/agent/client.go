package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProbePrompt is the query issued by TestConnection.
const ProbePrompt = "Hello, test connection"

// Options configures a Client.
type Options struct {
	Region   string
	AgentARN string

	// Now defaults to time.Now.
	Now func() time.Time
	// NewSessionID defaults to a random UUID. The runtime requires at least 33 characters.
	NewSessionID func() string
	// OnUnmatched, when set, receives reply bodies no Matcher recognised.
	OnUnmatched func(body any)
}

// Client talks to the remote agent runtime. Query and TestConnection never
// return Go errors: every failure is reported as an ErrorInfo.
type Client struct {
	boot Bootstrapper
	opts Options

	mu     sync.RWMutex
	handle *Handle
	status ConnectionStatus
}

// NewClient creates a client in the disconnected state. Call Initialize before use.
func NewClient(boot Bootstrapper, opts Options) *Client {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewSessionID == nil {
		opts.NewSessionID = uuid.NewString
	}
	return &Client{
		boot: boot,
		opts: opts,
		status: ConnectionStatus{
			State:    StateDisconnected,
			Region:   opts.Region,
			AgentARN: opts.AgentARN,
		},
	}
}

// Initialize acquires a credentialed handle and returns the resulting status.
// It always returns a status; failures are recorded in it.
func (c *Client) Initialize(ctx context.Context) ConnectionStatus {
	status := ConnectionStatus{Region: c.opts.Region, AgentARN: c.opts.AgentARN}

	var handle *Handle
	var err error
	if c.boot == nil {
		err = errors.New("no bootstrapper configured")
	} else {
		handle, err = c.boot.Bootstrap(ctx)
		if err == nil && (handle == nil || handle.Invoker == nil) {
			err = errors.New("bootstrap returned no invoker")
		}
	}

	if err != nil {
		status.State, status.Error = bootstrapFailure(err)
		handle = nil
	} else {
		status.State = StateConnected
	}

	c.mu.Lock()
	c.handle = handle
	c.status = status
	c.mu.Unlock()

	return status
}

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Identity returns the caller identity captured at bootstrap.
func (c *Client) Identity() (Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.handle == nil {
		return Identity{}, false
	}
	return c.handle.Identity, true
}

type promptPayload struct {
	Prompt string `json:"prompt"`
}

// Query sends prompt to the agent and normalizes the reply.
func (c *Client) Query(ctx context.Context, prompt string) StandardResponse {
	c.mu.RLock()
	handle, status := c.handle, c.status
	c.mu.RUnlock()

	if handle == nil {
		info := newErrorInfo(TypeConnection, CodeClientNotInitialized, Classify(CategoryAuth, "", status.Error), status.Error)
		return c.failure(info)
	}

	payload, err := json.Marshal(promptPayload{Prompt: prompt})
	if err != nil {
		return c.failure(describeFailure(err))
	}

	inv, err := handle.Invoker.Invoke(ctx, InvokeRequest{
		Payload:   payload,
		SessionID: c.opts.NewSessionID(),
	})
	if err != nil {
		return c.failure(describeFailure(err))
	}

	body, err := decodeBody(inv.Body)
	if err != nil {
		return c.failure(describeFailure(err))
	}

	text, matcher := Normalize(body)
	if matcher == "" && text != NoDataText && c.opts.OnUnmatched != nil {
		c.opts.OnUnmatched(body)
	}

	return StandardResponse{
		Success:   true,
		Timestamp: c.opts.Now(),
		Data:      text,
		Metadata: &Metadata{
			RequestID:  inv.RequestID,
			HTTPStatus: inv.HTTPStatus,
			AgentARN:   c.opts.AgentARN,
			Region:     c.opts.Region,
			SessionID:  inv.SessionID,
		},
	}
}

// TestConnection runs ProbePrompt through Query and marks the connection
// verified when it succeeds.
func (c *Client) TestConnection(ctx context.Context) ProbeResult {
	c.mu.RLock()
	handle, status := c.handle, c.status
	c.mu.RUnlock()

	if handle == nil {
		info := newErrorInfo(TypeConnection, CodeClientNotInitialized, Classify(CategoryAuth, "", status.Error), status.Error)
		info.Message = "AWS客戶端未初始化: " + status.Error
		return ProbeResult{Error: info}
	}

	resp := c.Query(ctx, ProbePrompt)
	if !resp.Success {
		return ProbeResult{Error: resp.Error}
	}

	c.mu.Lock()
	if c.handle == handle {
		c.status.Verified = true
	}
	c.mu.Unlock()

	ts := resp.Timestamp
	return ProbeResult{
		Success:      true,
		Message:      "連線測試成功",
		ResponseTime: &ts,
	}
}

func (c *Client) failure(info *ErrorInfo) StandardResponse {
	return StandardResponse{
		Success:   false,
		Timestamp: c.opts.Now(),
		Error:     info,
	}
}

// decodeBody parses a reply body. An empty body decodes to nil.
func decodeBody(raw []byte) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after reply", ErrMalformedResponse)
	}
	return body, nil
}
