package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"dropnote/internal/auth"
	"dropnote/internal/middleware"
	"dropnote/internal/store"
)

type testEnv struct {
	t      *testing.T
	router *gin.Engine
	clock  time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{t: t, clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	now := func() time.Time { return env.clock }
	limiter := middleware.NewRateLimiterWithNow(1, 24*time.Hour, now)
	t.Cleanup(limiter.Close)
	env.router = NewRouter(Deps{
		Store:       store.NewWithOptions(store.Options{Now: now}),
		TokenConfig: auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"},
		DropLimiter: limiter,
	})
	return env
}

func (e *testEnv) do(method, path, token string, body any) (int, map[string]any) {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			e.t.Fatalf("unmarshal %s %s: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w.Code, resp
}

func (e *testEnv) register(email string) string {
	e.t.Helper()
	code, resp := e.do(http.MethodPost, "/api/auth/register", "", map[string]any{"email": email, "password": "secret"})
	if code != http.StatusOK {
		e.t.Fatalf("register %s: expected 200, got %d: %v", email, code, resp)
	}
	token, _ := resp["credential"].(string)
	if token == "" {
		e.t.Fatalf("register %s: missing credential: %v", email, resp)
	}
	return token
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	code, resp := env.do(http.MethodGet, "/health", "", nil)
	if code != http.StatusOK || resp["ok"] != true {
		t.Fatalf("unexpected health response %d %v", code, resp)
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register("demo@example.com")

	code, resp := env.do(http.MethodPost, "/api/auth/register", "", map[string]any{"email": "demo@example.com", "password": "secret"})
	if code != http.StatusBadRequest || resp["message"] != "Email already registered" {
		t.Fatalf("expected duplicate rejection, got %d %v", code, resp)
	}
	code, _ = env.do(http.MethodPost, "/api/auth/register", "", map[string]any{"email": "short@example.com", "password": "123"})
	if code != http.StatusBadRequest {
		t.Fatalf("expected short password rejection, got %d", code)
	}

	code, resp = env.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "demo@example.com", "password": "secret"})
	if code != http.StatusOK {
		t.Fatalf("expected login 200, got %d %v", code, resp)
	}
	user, _ := resp["user"].(map[string]any)
	if user["email"] != "demo@example.com" || user["id"] == "" {
		t.Fatalf("unexpected user %v", resp["user"])
	}

	code, resp = env.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "demo@example.com", "password": "wrong"})
	if code != http.StatusUnauthorized || resp["message"] != "Invalid email or password" {
		t.Fatalf("expected 401, got %d %v", code, resp)
	}
	code, _ = env.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "", "password": ""})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	for _, r := range []struct{ method, path string }{
		{http.MethodPost, "/api/notes/drop"},
		{http.MethodGet, "/api/notes/inbox"},
		{http.MethodPost, "/api/notes/x/reply"},
		{http.MethodGet, "/api/users/me"},
		{http.MethodDelete, "/api/gdpr/delete"},
	} {
		if code, _ := env.do(r.method, r.path, "", nil); code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", r.method, r.path, code)
		}
	}
}

func TestDropInboxReplyFlow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice@example.com")

	code, resp := env.do(http.MethodPost, "/api/notes/drop", alice, map[string]any{"content": "hello"})
	if code != http.StatusConflict {
		t.Fatalf("expected 409 with no receivers, got %d %v", code, resp)
	}

	bob := env.register("bob@example.com")

	code, _ = env.do(http.MethodPost, "/api/notes/drop", alice, map[string]any{"content": "   "})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty content, got %d", code)
	}
	code, _ = env.do(http.MethodPost, "/api/notes/drop", alice, map[string]any{"content": strings.Repeat("a", 251)})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for long content, got %d", code)
	}

	code, resp = env.do(http.MethodPost, "/api/notes/drop", alice, map[string]any{"content": "hello"})
	if code != http.StatusOK {
		t.Fatalf("expected drop 200 after 409 gave the quota back, got %d %v", code, resp)
	}
	noteID, _ := resp["noteId"].(string)
	if noteID == "" {
		t.Fatalf("expected noteId, got %v", resp)
	}

	code, resp = env.do(http.MethodPost, "/api/notes/drop", alice, map[string]any{"content": "world"})
	if code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d %v", code, resp)
	}

	code, resp = env.do(http.MethodGet, "/api/notes/inbox", alice, nil)
	if code != http.StatusOK || resp["note"] != nil {
		t.Fatalf("expected empty inbox for sender, got %d %v", code, resp)
	}

	code, resp = env.do(http.MethodGet, "/api/notes/inbox", bob, nil)
	note, _ := resp["note"].(map[string]any)
	if code != http.StatusOK || note["id"] != noteID || note["role"] != "received" || note["replied"] != false {
		t.Fatalf("unexpected inbox %d %v", code, resp)
	}
	if _, ok := note["senderId"]; ok {
		t.Fatalf("sender must not be revealed: %v", note)
	}

	code, _ = env.do(http.MethodPost, "/api/notes/"+noteID+"/reply", alice, map[string]any{"content": "self"})
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 for sender reply, got %d", code)
	}
	code, _ = env.do(http.MethodPost, "/api/notes/"+noteID+"/reply", bob, map[string]any{"content": strings.Repeat("b", 201)})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for long reply, got %d", code)
	}
	code, resp = env.do(http.MethodPost, "/api/notes/"+noteID+"/reply", bob, map[string]any{"content": "thanks"})
	if code != http.StatusOK {
		t.Fatalf("expected reply 200, got %d %v", code, resp)
	}
	code, _ = env.do(http.MethodPost, "/api/notes/"+noteID+"/reply", bob, map[string]any{"content": "again"})
	if code != http.StatusConflict {
		t.Fatalf("expected 409 on second reply, got %d", code)
	}

	env.clock = env.clock.Add(24*time.Hour + time.Second)
	code, resp = env.do(http.MethodPost, "/api/notes/drop", alice, map[string]any{"content": "next day"})
	if code != http.StatusOK {
		t.Fatalf("expected drop allowed after window, got %d %v", code, resp)
	}
}

func TestProfileAndDelete(t *testing.T) {
	env := newTestEnv(t)
	token := env.register("demo@example.com")

	code, resp := env.do(http.MethodGet, "/api/users/me", token, nil)
	if code != http.StatusOK || resp["email"] != "demo@example.com" || resp["createdAt"] == nil {
		t.Fatalf("unexpected profile %d %v", code, resp)
	}

	code, resp = env.do(http.MethodDelete, "/api/gdpr/delete", token, nil)
	if code != http.StatusOK || resp["message"] == nil {
		t.Fatalf("unexpected delete response %d %v", code, resp)
	}

	code, _ = env.do(http.MethodGet, "/api/users/me", token, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after delete, got %d", code)
	}
	code, _ = env.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "demo@example.com", "password": "secret"})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected login to fail after delete, got %d", code)
	}
}
