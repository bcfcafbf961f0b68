package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/ashureev/cityagent/internal/agent"
	"github.com/ashureev/cityagent/internal/api"
	"github.com/ashureev/cityagent/internal/domain"
	"github.com/ashureev/cityagent/internal/identity"
	"github.com/go-chi/chi/v5"
)

const maxMessageBytes = 16 << 10

// StatusSource reports the agent connection for the page sidebar.
type StatusSource interface {
	Status() agent.ConnectionStatus
	Identity() (agent.Identity, bool)
}

// PageInfo is the static configuration shown in the sidebar.
type PageInfo struct {
	Region      string
	Profile     string
	Mode        string
	AgentTarget string
	WeatherKey  bool
	EventsKey   bool
}

// PageData is the data passed to the index template.
type PageData struct {
	Title         string
	SessionID     string
	Messages      []MessageView
	Loading       bool
	Status        agent.ConnectionStatus
	Identity      *agent.Identity
	Examples      []Example
	SamplePrompts map[string][]string
	Info          PageInfo
}

// MessageView is a transcript entry ready for rendering.
type MessageView struct {
	Role    domain.Role
	HTML    template.HTML
	Time    string
	IsError bool
}

// Handler serves the chat page and the chat JSON API.
type Handler struct {
	svc    *Service
	status StatusSource
	info   PageInfo
	md     *Markdown
	tmpl   *template.Template
}

// NewHandler parses the page templates from templates and creates a Handler.
func NewHandler(svc *Service, status StatusSource, info PageInfo, templates fs.FS) (*Handler, error) {
	tmpl, err := template.New("").ParseFS(templates, "*.html")
	if err != nil {
		return nil, fmt.Errorf("parse chat templates: %w", err)
	}
	return &Handler{
		svc:    svc,
		status: status,
		info:   info,
		md:     NewMarkdown(),
		tmpl:   tmpl,
	}, nil
}

// RegisterRoutes registers the page and chat API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Page)
	r.Post("/api/chat", h.Ask)
	r.Get("/api/chat/messages", h.Messages)
	r.Delete("/api/chat/messages", h.Clear)
	r.Get("/api/examples", h.Examples)
}

// Page renders the chat page with the current transcript.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	sid := identity.SessionIDFromContext(r.Context())
	data := PageData{
		Title:         "Weather Agent - 智能天氣助手",
		SessionID:     sid,
		Messages:      h.views(h.svc.Messages(sid)),
		Loading:       h.svc.Loading(sid),
		Status:        h.status.Status(),
		Examples:      Examples,
		SamplePrompts: SamplePrompts,
		Info:          h.info,
	}
	if id, ok := h.status.Identity(); ok {
		data.Identity = &id
	}

	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "index", data); err != nil {
		slog.Error("Failed to render chat page", "error", err, "session_id", sid)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

type askRequest struct {
	Message string `json:"message"`
}

// Ask runs one query for the caller's session.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.Ask(r.Context(), identity.SessionIDFromContext(r.Context()), "http", req.Message)
	switch {
	case errors.Is(err, ErrEmptyMessage):
		api.Error(w, http.StatusBadRequest, "message is required")
	case errors.Is(err, ErrBusy):
		api.Error(w, http.StatusConflict, "a query is already in progress")
	case err != nil:
		api.Error(w, http.StatusInternalServerError, "query failed")
	default:
		api.JSON(w, http.StatusOK, resp)
	}
}

// Messages returns the caller's transcript.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	sid := identity.SessionIDFromContext(r.Context())
	api.JSON(w, http.StatusOK, map[string]any{
		"messages": h.svc.Messages(sid),
		"loading":  h.svc.Loading(sid),
	})
}

// Clear empties the caller's transcript.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.svc.Clear(identity.SessionIDFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// Examples returns the quick-query prompts.
func (h *Handler) Examples(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, map[string]any{
		"examples": Examples,
		"samples":  SamplePrompts,
	})
}

func (h *Handler) views(msgs []domain.ChatMessage) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		src := m.Content
		if m.Role == domain.RoleUser {
			src = "**您:** " + src
		} else {
			src = "**🧠 天氣助手:**\n\n" + src
		}
		out = append(out, MessageView{
			Role:    m.Role,
			HTML:    h.md.Render(src),
			Time:    m.Timestamp.Format("15:04:05"),
			IsError: m.IsError(),
		})
	}
	return out
}

// renderTranscript renders the transcript fragment used by WebSocket frames.
func (h *Handler) renderTranscript(sid string) (string, error) {
	views := h.views(h.svc.Messages(sid))
	if len(views) == 0 {
		return `<p class="welcome">👋 歡迎！請在上方輸入框中提問，或點擊快速查詢按鈕開始對話。</p>`, nil
	}
	var buf bytes.Buffer
	for _, v := range views {
		if err := h.tmpl.ExecuteTemplate(&buf, "message", v); err != nil {
			return "", fmt.Errorf("render message: %w", err)
		}
	}
	return buf.String(), nil
}
