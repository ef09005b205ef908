package app

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"dropnote/internal/api"
	"dropnote/internal/auth"
	"dropnote/internal/middleware"
	"dropnote/internal/mutation"
	"dropnote/internal/server"
	"dropnote/internal/session"
	"dropnote/internal/store"
)

func newDevServer(t *testing.T, clk *clock) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := store.NewWithOptions(store.Options{Now: clk.Now, Logger: quietLogger()})
	if err := server.SeedDemoAccounts(st); err != nil {
		t.Fatalf("SeedDemoAccounts: %v", err)
	}
	limiter := middleware.NewRateLimiterWithNow(1, 24*time.Hour, clk.Now)
	t.Cleanup(limiter.Close)

	srv := httptest.NewServer(server.NewRouter(server.Deps{
		Store:       st,
		TokenConfig: auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"},
		DropLimiter: limiter,
		Logger:      quietLogger(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClientApp(t *testing.T, baseURL string, clk *clock) *App {
	t.Helper()
	client, err := api.New(api.Config{BaseURL: baseURL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	a, err := New(context.Background(), Deps{
		Gateway: client,
		Store:   session.NewMemoryStore(""),
		Logger:  quietLogger(),
		Now:     clk.Now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestEndToEnd_DailyDropAndReply(t *testing.T) {
	clk := &clock{now: time.Now().UTC()}
	srv := newDevServer(t, clk)
	ctx := context.Background()

	demo := newClientApp(t, srv.URL, clk)
	s, err := demo.Login(ctx, "demo@example.com", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.Credential == "" || s.Identity == nil || s.Identity.Email != "demo@example.com" {
		t.Fatalf("unexpected session %+v", s)
	}

	first, err := demo.Drop(ctx, "hello")
	if err != nil || !first.Accepted() || first.NoteID == "" {
		t.Fatalf("expected accepted drop with note id, got %+v %v", first, err)
	}

	second, err := demo.Drop(ctx, "world")
	if err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if second.State.Kind != mutation.KindRateLimited || second.Status != 429 {
		t.Fatalf("expected RateLimited 429, got %+v", second)
	}
	if second.Notice.Title != "Already dropped today" || demo.Mutations.CanDrop() {
		t.Fatalf("expected locked state, got %+v", second.Notice)
	}

	note, err := demo.CurrentNote(ctx)
	if err != nil || note != nil {
		t.Fatalf("expected empty inbox for the sender, got %+v %v", note, err)
	}

	peer := newClientApp(t, srv.URL, clk)
	if _, err := peer.Login(ctx, "peer@example.com", "secret"); err != nil {
		t.Fatalf("Login peer: %v", err)
	}
	received, err := peer.CurrentNote(ctx)
	if err != nil || received == nil || received.ID != first.NoteID || received.Content != "hello" {
		t.Fatalf("expected the dropped note in peer's inbox, got %+v %v", received, err)
	}
	if !peer.CanReply(*received) {
		t.Fatalf("expected reply offered")
	}

	out, err := peer.Reply(ctx, received.ID, "hi back")
	if err != nil || !out.Accepted() {
		t.Fatalf("expected accepted reply, got %+v %v", out, err)
	}
	refreshed, err := peer.CurrentNote(ctx)
	if err != nil || refreshed == nil || !refreshed.Replied || peer.CanReply(*refreshed) {
		t.Fatalf("expected replied note after refetch, got %+v %v", refreshed, err)
	}

}

func TestEndToEnd_ExpiredNoteIsNotReplyable(t *testing.T) {
	clk := &clock{now: time.Now().UTC()}
	srv := newDevServer(t, clk)
	ctx := context.Background()

	demo := newClientApp(t, srv.URL, clk)
	if _, err := demo.Login(ctx, "demo@example.com", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if out, _ := demo.Drop(ctx, "hello"); !out.Accepted() {
		t.Fatalf("expected drop accepted, got %+v", out)
	}

	peer := newClientApp(t, srv.URL, clk)
	if _, err := peer.Login(ctx, "peer@example.com", "secret"); err != nil {
		t.Fatalf("Login peer: %v", err)
	}
	note, err := peer.CurrentNote(ctx)
	if err != nil || note == nil || !peer.CanReply(*note) {
		t.Fatalf("expected replyable note, got %+v %v", note, err)
	}

	clk.Advance(25 * time.Hour)
	if peer.CanReply(*note) {
		t.Fatalf("expired note must not be replyable")
	}
	out, err := peer.Reply(ctx, note.ID, "too late")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if out.State.Kind != mutation.KindValidation || !out.Local {
		t.Fatalf("expected local validation rejection, got %+v", out)
	}
	gone, err := peer.CurrentNote(ctx)
	if err != nil || gone != nil {
		t.Fatalf("expected expired note absent, got %+v %v", gone, err)
	}
}

func TestEndToEnd_DuplicateReplyFromSecondClient(t *testing.T) {
	clk := &clock{now: time.Now().UTC()}
	srv := newDevServer(t, clk)
	ctx := context.Background()

	demo := newClientApp(t, srv.URL, clk)
	if _, err := demo.Login(ctx, "demo@example.com", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if out, _ := demo.Drop(ctx, "hello"); !out.Accepted() {
		t.Fatalf("expected drop accepted, got %+v", out)
	}

	phone := newClientApp(t, srv.URL, clk)
	laptop := newClientApp(t, srv.URL, clk)
	for _, a := range []*App{phone, laptop} {
		if _, err := a.Login(ctx, "peer@example.com", "secret"); err != nil {
			t.Fatalf("Login peer: %v", err)
		}
	}
	note, err := laptop.CurrentNote(ctx)
	if err != nil || note == nil {
		t.Fatalf("expected note, got %+v %v", note, err)
	}

	if out, _ := phone.Reply(ctx, note.ID, "first"); !out.Accepted() {
		t.Fatalf("expected first reply accepted, got %+v", out)
	}
	out, err := laptop.Reply(ctx, note.ID, "second")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if out.State.Kind != mutation.KindAlreadyReplied || out.Status != 409 {
		t.Fatalf("expected AlreadyReplied 409, got %+v", out)
	}
	if laptop.CanReply(*note) {
		t.Fatalf("reply must not be offered after 409")
	}
}

func TestEndToEnd_DropWithoutReceivers(t *testing.T) {
	clk := &clock{now: time.Now().UTC()}
	srv := newDevServer(t, clk)
	ctx := context.Background()

	a := newClientApp(t, srv.URL, clk)
	if _, err := a.Login(ctx, "peer@example.com", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := a.DeleteAccount(ctx); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	solo := newClientApp(t, srv.URL, clk)
	if _, err := solo.Login(ctx, "demo@example.com", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	out, err := solo.Drop(ctx, "anyone there?")
	if err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if out.State.Kind != mutation.KindNoReceivers || !solo.Mutations.CanDrop() {
		t.Fatalf("expected retryable NoReceivers, got %+v", out)
	}
}

func TestEndToEnd_StaleCredentialClearsSession(t *testing.T) {
	clk := &clock{now: time.Now().UTC()}
	srv := newDevServer(t, clk)
	ctx := context.Background()

	a := newClientApp(t, srv.URL, clk)
	a.Session.SetSession(ctx, "not-a-real-token")

	_, err := a.CurrentNote(ctx)
	if !api.IsUnauthorized(err) {
		t.Fatalf("expected 401, got %v", err)
	}
	if a.CurrentSession().Active() {
		t.Fatalf("expected session cleared after 401")
	}
}
