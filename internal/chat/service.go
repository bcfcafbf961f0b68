package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/cityagent/internal/agent"
	"github.com/ashureev/cityagent/internal/domain"
	"github.com/ashureev/cityagent/internal/telemetry"
)

var (
	// ErrBusy is returned when the session already has a query in flight.
	ErrBusy = errors.New("chat: query already in progress")
	// ErrEmptyMessage is returned for blank prompts.
	ErrEmptyMessage = errors.New("chat: message is empty")
)

// Querier is the subset of agent.Client used by the service.
type Querier interface {
	Query(ctx context.Context, prompt string) agent.StandardResponse
}

var _ Querier = (*agent.Client)(nil)

// Service runs queries on behalf of chat sessions and records the transcript.
type Service struct {
	agent  Querier
	store  *SessionStore
	tel    *telemetry.Telemetry
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service. tel may be nil.
func NewService(q Querier, store *SessionStore, tel *telemetry.Telemetry, logger *slog.Logger) *Service {
	if tel == nil {
		tel = telemetry.Noop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		agent:  q,
		store:  store,
		tel:    tel,
		logger: logger,
		now:    time.Now,
	}
}

// Ask sends prompt for sessionID. The user message and the assistant reply
// (or rendered failure) are appended to the transcript. Agent failures are
// reported in the returned response, not as an error.
func (s *Service) Ask(ctx context.Context, sessionID, transport, prompt string) (agent.StandardResponse, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return agent.StandardResponse{}, ErrEmptyMessage
	}

	sess, ok := s.store.Begin(sessionID, s.now())
	if !ok {
		return agent.StandardResponse{}, ErrBusy
	}
	defer sess.EndQuery()

	sess.Append(s.now(), domain.ChatMessage{
		Role:      domain.RoleUser,
		Content:   prompt,
		Timestamp: s.now(),
	})

	ctx, span := s.tel.Tracer.StartQuerySpan(ctx, sessionID, transport)
	start := time.Now()
	resp := s.agent.Query(ctx, prompt)
	elapsed := time.Since(start)

	reply := domain.ChatMessage{
		Role:      domain.RoleAssistant,
		Timestamp: s.now(),
	}

	if resp.Success {
		reply.Content = resp.Data
		reply.Metadata = resp.Metadata
		var requestID string
		if resp.Metadata != nil {
			requestID = resp.Metadata.RequestID
		}
		telemetry.EndQuerySpan(span, "", "", false)
		s.tel.Metrics.RecordQuery(ctx, "ok", false, elapsed)
		s.logger.Info("Agent query succeeded",
			"session_id", sessionID,
			"transport", transport,
			"latency_ms", elapsed.Milliseconds(),
			"request_id", requestID)
	} else {
		info := resp.Error
		reply.Content = FormatError(info)
		reply.ErrorInfo = info
		telemetry.EndQuerySpan(span, info.Category.String(), info.Code, info.Retryable)
		s.tel.Metrics.RecordQuery(ctx, info.Category.String(), info.Retryable, elapsed)
		s.logger.Warn("Agent query failed",
			"session_id", sessionID,
			"transport", transport,
			"latency_ms", elapsed.Milliseconds(),
			"type", info.Type,
			"code", info.Code,
			"category", info.Category.String(),
			"retryable", info.Retryable,
			"error", info.RawMessage)
	}

	sess.Append(s.now(), reply)
	return resp, nil
}

// Messages returns the transcript for sessionID.
func (s *Service) Messages(sessionID string) []domain.ChatMessage {
	if sess, ok := s.store.Lookup(sessionID); ok {
		return sess.Messages()
	}
	return []domain.ChatMessage{}
}

// Loading reports whether sessionID has a query in flight.
func (s *Service) Loading(sessionID string) bool {
	if sess, ok := s.store.Lookup(sessionID); ok {
		return sess.Loading()
	}
	return false
}

// Clear empties the transcript for sessionID.
func (s *Service) Clear(sessionID string) {
	if sess, ok := s.store.Lookup(sessionID); ok {
		sess.Clear(s.now())
		s.logger.Info("Transcript cleared", "session_id", sessionID)
	}
}

const unmatchedLogLimit = 512

// LogUnmatched returns a callback that logs reply bodies no extractor recognised.
func LogUnmatched(logger *slog.Logger) func(body any) {
	return func(body any) {
		raw, err := json.Marshal(body)
		if err != nil {
			logger.Warn("Agent reply in unrecognised shape", "type", slog.AnyValue(body).Kind().String())
			return
		}
		logger.Warn("Agent reply in unrecognised shape", "body", agent.TruncateRunes(string(raw), unmatchedLogLimit))
	}
}
