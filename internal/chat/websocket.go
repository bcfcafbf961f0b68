package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/cityagent/internal/agent"
	"github.com/ashureev/cityagent/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Client frame types.
const (
	FrameQuery = "query"
	FrameClear = "clear"
	FramePing  = "ping"
)

// Server frame types.
const (
	FrameResponse = "response"
	FrameBusy     = "busy"
	FrameCleared  = "cleared"
	FramePong     = "pong"
	FrameError    = "error"
)

const wsWriteTimeout = 10 * time.Second

type clientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type serverFrame struct {
	Type       string                  `json:"type"`
	Response   *agent.StandardResponse `json:"response,omitempty"`
	Transcript string                  `json:"transcript,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// WebSocketHandler serves /ws/chat.
type WebSocketHandler struct {
	h              *Handler
	originPatterns []string
}

// NewWebSocketHandler creates a WebSocket handler sharing h's service and
// templates. originPatterns follow websocket.AcceptOptions semantics.
func NewWebSocketHandler(h *Handler, originPatterns []string) *WebSocketHandler {
	return &WebSocketHandler{h: h, originPatterns: originPatterns}
}

// conn serializes writes to a single WebSocket.
type conn struct {
	ws  *websocket.Conn
	sid string
	mu  sync.Mutex
}

func (c *conn) write(ctx context.Context, f serverFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.ws, f)
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (wh *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sid := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "session_id", sid, "ip", identity.IPFromRequest(r))

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: wh.originPatterns,
	})
	if err != nil {
		slog.Warn("Failed to accept WebSocket", "error", err, "session_id", sid)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sid)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &conn{ws: ws, sid: sid}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "session_id", sid)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", sid)
			}
			return
		}

		var msg clientFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			wh.send(ctx, c, serverFrame{Type: FrameError, Error: "invalid frame"})
			continue
		}

		switch msg.Type {
		case FrameQuery:
			wg.Add(1)
			go func(prompt string) {
				defer wg.Done()
				wh.query(ctx, c, prompt)
			}(msg.Content)
		case FrameClear:
			wh.h.svc.Clear(sid)
			wh.sendTranscript(ctx, c, serverFrame{Type: FrameCleared})
		case FramePing:
			wh.send(ctx, c, serverFrame{Type: FramePong})
		default:
			wh.send(ctx, c, serverFrame{Type: FrameError, Error: "unknown frame type: " + msg.Type})
		}
	}
}

// query runs detached from the connection so a reply that arrives after the
// tab closed still lands in the transcript.
func (wh *WebSocketHandler) query(ctx context.Context, c *conn, prompt string) {
	resp, err := wh.h.svc.Ask(context.WithoutCancel(ctx), c.sid, "ws", prompt)
	switch {
	case errors.Is(err, ErrBusy):
		wh.send(ctx, c, serverFrame{Type: FrameBusy})
	case errors.Is(err, ErrEmptyMessage):
		wh.send(ctx, c, serverFrame{Type: FrameError, Error: "message is required"})
	case err != nil:
		wh.send(ctx, c, serverFrame{Type: FrameError, Error: "query failed"})
	default:
		wh.sendTranscript(ctx, c, serverFrame{Type: FrameResponse, Response: &resp})
	}
}

func (wh *WebSocketHandler) sendTranscript(ctx context.Context, c *conn, f serverFrame) {
	html, err := wh.h.renderTranscript(c.sid)
	if err != nil {
		slog.Error("Failed to render transcript", "error", err, "session_id", c.sid)
	}
	f.Transcript = html
	wh.send(ctx, c, f)
}

func (wh *WebSocketHandler) send(ctx context.Context, c *conn, f serverFrame) {
	if err := c.write(ctx, f); err != nil && ctx.Err() == nil {
		slog.Debug("WebSocket write error", "error", err, "session_id", c.sid)
	}
}
