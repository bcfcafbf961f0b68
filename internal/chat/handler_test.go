package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/cityagent/internal/agent"
	"github.com/ashureev/cityagent/internal/identity"
	"github.com/ashureev/cityagent/web"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type fakeStatus struct {
	status agent.ConnectionStatus
}

func (f fakeStatus) Status() agent.ConnectionStatus { return f.status }

func (f fakeStatus) Identity() (agent.Identity, bool) {
	if !f.status.Connected() {
		return agent.Identity{}, false
	}
	return agent.Identity{Account: "123456789012", ARN: "arn:aws:iam::123456789012:user/dev"}, true
}

func newTestServer(t *testing.T, q Querier) (*httptest.Server, *Service) {
	t.Helper()

	svc, _ := newTestService(q)
	h, err := NewHandler(svc, fakeStatus{status: agent.ConnectionStatus{
		State:    agent.StateConnected,
		Region:   "us-east-1",
		AgentARN: "arn:test",
	}}, PageInfo{Region: "us-east-1", Profile: "workshop-profile", Mode: "agentcore", AgentTarget: "arn:test"}, web.Templates())
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	h.RegisterRoutes(r)
	r.Get("/ws/chat", NewWebSocketHandler(h, []string{"*"}).ServeHTTP)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func doRequest(t *testing.T, method, url, sid, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set(identity.SessionHeaderName, sid)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTPAskAndTranscript(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeQuerier{resp: okResponse("Taipei: 28°C, clear")})
	sid := uuid.NewString()

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/chat", sid, `{"message":"台北今天天氣如何？"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got agent.StandardResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Success || got.Data != "Taipei: 28°C, clear" {
		t.Fatalf("unexpected response %+v", got)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/chat/messages", sid, "")
	var transcript struct {
		Messages []map[string]any `json:"messages"`
		Loading  bool             `json:"loading"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&transcript); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(transcript.Messages) != 2 || transcript.Messages[0]["role"] != "user" || transcript.Messages[1]["content"] != "Taipei: 28°C, clear" {
		t.Fatalf("unexpected transcript %+v", transcript)
	}

	resp = doRequest(t, http.MethodDelete, srv.URL+"/api/chat/messages", sid, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodGet, srv.URL+"/api/chat/messages", sid, "")
	_ = json.NewDecoder(resp.Body).Decode(&transcript)
	if len(transcript.Messages) != 0 {
		t.Fatalf("expected cleared transcript, got %d", len(transcript.Messages))
	}
}

func TestHTTPAskRejectsBadInput(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeQuerier{resp: okResponse("x")})
	sid := uuid.NewString()

	if resp := doRequest(t, http.MethodPost, srv.URL+"/api/chat", sid, `{"message":`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed JSON: expected 400, got %d", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodPost, srv.URL+"/api/chat", sid, `{"message":"  "}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty message: expected 400, got %d", resp.StatusCode)
	}
}

func TestHTTPAskBusy(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{resp: okResponse("x"), started: make(chan struct{}, 1), block: make(chan struct{})}
	srv, _ := newTestServer(t, q)
	sid := uuid.NewString()

	done := make(chan int, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/chat", strings.NewReader(`{"message":"first"}`))
		req.Header.Set(identity.SessionHeaderName, sid)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()
	<-q.started

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/chat", sid, `{"message":"second"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	close(q.block)
	if code := <-done; code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", code)
	}
}

func TestPageRendersTranscript(t *testing.T) {
	t.Parallel()

	srv, svc := newTestServer(t, &fakeQuerier{resp: failResponse("ThrottlingException")})
	sid := uuid.NewString()
	if _, err := svc.Ask(context.Background(), sid, "http", "<b>台北</b>"); err != nil {
		t.Fatalf("Ask: %v", err)
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/", sid, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	page := string(body)

	for _, want := range []string{"連線正常", "台北天氣", "message-error", "此錯誤可重試", "workshop-profile", "123456789012"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestExamplesEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, &fakeQuerier{})
	resp := doRequest(t, http.MethodGet, srv.URL+"/api/examples", uuid.NewString(), "")

	var got struct {
		Examples []Example `json:"examples"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Examples) != 4 || got.Examples[0].Prompt != "台北今天天氣如何？" {
		t.Fatalf("unexpected examples %+v", got.Examples)
	}
}

func dialChat(t *testing.T, srv *httptest.Server, sid string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	ws, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{identity.SessionHeaderName: []string{sid}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) serverFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var f serverFrame
	if err := wsjson.Read(ctx, ws, &f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func writeFrame(t *testing.T, ws *websocket.Conn, f clientFrame) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, ws, f); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func TestWebSocketQueryRoundTrip(t *testing.T) {
	t.Parallel()

	srv, svc := newTestServer(t, &fakeQuerier{resp: okResponse("Tokyo: **22°C**")})
	sid := uuid.NewString()
	ws := dialChat(t, srv, sid)

	writeFrame(t, ws, clientFrame{Type: FramePing})
	if f := readFrame(t, ws); f.Type != FramePong {
		t.Fatalf("expected pong, got %+v", f)
	}

	writeFrame(t, ws, clientFrame{Type: FrameQuery, Content: "東京現在天氣怎樣？"})
	f := readFrame(t, ws)
	if f.Type != FrameResponse || f.Response == nil || f.Response.Data != "Tokyo: **22°C**" {
		t.Fatalf("unexpected frame %+v", f)
	}
	if !strings.Contains(f.Transcript, "<strong>22°C</strong>") || !strings.Contains(f.Transcript, "東京現在天氣怎樣？") {
		t.Fatalf("unexpected transcript fragment %q", f.Transcript)
	}
	if n := len(svc.Messages(sid)); n != 2 {
		t.Fatalf("expected 2 messages, got %d", n)
	}

	writeFrame(t, ws, clientFrame{Type: FrameClear})
	f = readFrame(t, ws)
	if f.Type != FrameCleared || !strings.Contains(f.Transcript, "歡迎") {
		t.Fatalf("unexpected frame %+v", f)
	}
	if n := len(svc.Messages(sid)); n != 0 {
		t.Fatalf("expected empty transcript, got %d", n)
	}
}

func TestWebSocketBusyAndErrors(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{resp: okResponse("x"), started: make(chan struct{}, 1), block: make(chan struct{})}
	srv, _ := newTestServer(t, q)
	ws := dialChat(t, srv, uuid.NewString())

	writeFrame(t, ws, clientFrame{Type: FrameQuery, Content: "first"})
	<-q.started
	writeFrame(t, ws, clientFrame{Type: FrameQuery, Content: "second"})
	if f := readFrame(t, ws); f.Type != FrameBusy {
		t.Fatalf("expected busy, got %+v", f)
	}

	close(q.block)
	if f := readFrame(t, ws); f.Type != FrameResponse {
		t.Fatalf("expected response, got %+v", f)
	}

	writeFrame(t, ws, clientFrame{Type: "teleport"})
	if f := readFrame(t, ws); f.Type != FrameError || !strings.Contains(f.Error, "teleport") {
		t.Fatalf("expected error frame, got %+v", f)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := readFrame(t, ws); f.Type != FrameError {
		t.Fatalf("expected error frame, got %+v", f)
	}
}
