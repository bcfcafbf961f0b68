package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func captureSession(t *testing.T, req *http.Request) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var got string
	h := Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = SessionIDFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return got, rec
}

func TestMiddlewareIssuesSession(t *testing.T) {
	t.Parallel()

	sid, rec := captureSession(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(sid); err != nil {
		t.Fatalf("expected uuid session id, got %q", sid)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName || cookies[0].Value != sid {
		t.Fatalf("unexpected cookies %+v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Fatal("expected HttpOnly cookie")
	}
}

func TestMiddlewareReusesCookie(t *testing.T) {
	t.Parallel()

	existing := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: existing})

	sid, _ := captureSession(t, req)
	if sid != existing {
		t.Fatalf("expected %s, got %s", existing, sid)
	}
}

func TestMiddlewareHeaderWins(t *testing.T) {
	t.Parallel()

	header := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: uuid.NewString()})
	req.Header.Set(SessionHeaderName, header)

	sid, _ := captureSession(t, req)
	if sid != header {
		t.Fatalf("expected header session %s, got %s", header, sid)
	}
}

func TestMiddlewareRejectsMalformedCookie(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "../../etc/passwd"})

	sid, _ := captureSession(t, req)
	if sid == "../../etc/passwd" {
		t.Fatal("malformed cookie accepted")
	}
	if _, err := uuid.Parse(sid); err != nil {
		t.Fatalf("expected fresh uuid, got %q", sid)
	}
}

func TestIPFromRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:54321"
	if ip := IPFromRequest(req); ip != "203.0.113.7" {
		t.Fatalf("got %q", ip)
	}
	req.RemoteAddr = "not-an-addr"
	if ip := IPFromRequest(req); ip != "not-an-addr" {
		t.Fatalf("got %q", ip)
	}
}
