// Package app wires the client components behind one value and applies the
// session-level policies that span them.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dropnote/internal/api"
	"dropnote/internal/appreciation"
	"dropnote/internal/cache"
	"dropnote/internal/inbox"
	"dropnote/internal/live"
	"dropnote/internal/model"
	"dropnote/internal/mutation"
	"dropnote/internal/session"
)

var ErrNotAuthenticated = errors.New("app: not authenticated")

// ProfileWindow is how long a fetched profile is served without refetching.
const ProfileWindow = 60 * time.Second

// Gateway is the subset of *api.Client the app talks to.
type Gateway interface {
	Register(ctx context.Context, email, password string) (api.AuthResponse, error)
	Login(ctx context.Context, email, password string) (api.AuthResponse, error)
	DropNote(ctx context.Context, credential, content string) (api.DropResponse, error)
	FetchInbox(ctx context.Context, credential string) (*model.Note, error)
	SendReply(ctx context.Context, credential, noteID, content string) (api.MessageResponse, error)
	FetchProfile(ctx context.Context, credential string) (model.Profile, error)
	DeleteAccount(ctx context.Context, credential string) (api.MessageResponse, error)
}

type Deps struct {
	Gateway Gateway
	Store   session.CredentialStore
	Logger  logrus.FieldLogger
	Now     func() time.Time
}

type App struct {
	gateway Gateway
	logger  logrus.FieldLogger

	Session      *session.Manager
	Inbox        *inbox.Cache
	Mutations    *mutation.Orchestrator
	Appreciation *appreciation.Store

	profile *cache.Slot[model.Profile]
}

func New(ctx context.Context, deps Deps) (*App, error) {
	if deps.Gateway == nil {
		return nil, errors.New("app: gateway is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	a := &App{
		gateway:      deps.Gateway,
		logger:       logger,
		Appreciation: appreciation.NewStore(),
	}
	a.Session = session.NewManager(ctx, deps.Store, logger)
	a.Inbox = inbox.New(a.fetchInbox, now)
	a.profile = cache.NewSlot(cache.Fetcher[model.Profile](a.fetchProfile), cache.WithClock(now))
	a.Mutations = mutation.New(mutation.Deps{
		Gateway:     deps.Gateway,
		Credentials: a.Session,
		Inbox:       a.Inbox,
		Logger:      logger,
		Now:         now,
	})
	a.Mutations.OnReplied(a.Inbox.MarkReplied)
	a.Session.OnChange(a.sessionChanged)
	return a, nil
}

func (a *App) fetchInbox(ctx context.Context) (*model.Note, error) {
	credential := a.Session.Credential()
	if credential == "" {
		return nil, ErrNotAuthenticated
	}
	return a.gateway.FetchInbox(ctx, credential)
}

func (a *App) fetchProfile(ctx context.Context) (model.Profile, error) {
	credential := a.Session.Credential()
	if credential == "" {
		return model.Profile{}, ErrNotAuthenticated
	}
	return a.gateway.FetchProfile(ctx, credential)
}

// sessionChanged drops everything that belonged to the previous session.
func (a *App) sessionChanged(s session.Session) {
	a.Inbox.Reset()
	a.profile.Reset()
	a.Mutations.Reset()
	if !s.Active() {
		a.Appreciation.Clear()
	}
}

// unauthorized applies the 401 policy: the credential is gone for good.
func (a *App) unauthorized(ctx context.Context, op string) {
	a.logger.WithField("op", op).Warn("service rejected credential, clearing session")
	a.Session.ClearSession(ctx)
}

func (a *App) checkUnauthorized(ctx context.Context, op string, err error) {
	if api.IsUnauthorized(err) {
		a.unauthorized(ctx, op)
	}
}

func (a *App) CurrentSession() session.Session {
	return a.Session.Current()
}

func (a *App) Register(ctx context.Context, email, password string) (session.Session, error) {
	resp, err := a.gateway.Register(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return session.Session{}, err
	}
	return a.start(ctx, resp)
}

func (a *App) Login(ctx context.Context, email, password string) (session.Session, error) {
	resp, err := a.gateway.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return session.Session{}, err
	}
	return a.start(ctx, resp)
}

func (a *App) start(ctx context.Context, resp api.AuthResponse) (session.Session, error) {
	if resp.Credential == "" {
		return session.Session{}, fmt.Errorf("app: service returned no credential")
	}
	s := a.Session.SetSession(ctx, resp.Credential)
	if s.Identity != nil && s.Identity.Email == "" {
		s.Identity.Email = resp.User.Email
	}
	a.logger.WithField("user_id", resp.User.ID).Info("session started")
	return s, nil
}

func (a *App) Logout(ctx context.Context) {
	a.Session.ClearSession(ctx)
}

// CurrentNote returns the received note for the inbox screen, or nil when
// there is none.
func (a *App) CurrentNote(ctx context.Context) (*model.Note, error) {
	if !a.Session.Current().Active() {
		return nil, ErrNotAuthenticated
	}
	note, err := a.Inbox.Current(ctx, inbox.InboxView)
	if err != nil {
		a.checkUnauthorized(ctx, "inbox", err)
		return nil, err
	}
	return note, nil
}

// NoteDetail returns the inbox note with noteID for the read screen, or nil
// when it is gone or expired.
func (a *App) NoteDetail(ctx context.Context, noteID string) (*model.Note, error) {
	if !a.Session.Current().Active() {
		return nil, ErrNotAuthenticated
	}
	note, err := a.Inbox.Note(ctx, noteID, inbox.DetailView)
	if err != nil {
		a.checkUnauthorized(ctx, "note", err)
		return nil, err
	}
	return note, nil
}

func (a *App) Drop(ctx context.Context, content string) (mutation.Outcome, error) {
	out, err := a.Mutations.Drop(ctx, content)
	if err != nil {
		return out, err
	}
	if out.State.Kind == mutation.KindUnauthorized && !out.Local {
		a.unauthorized(ctx, "drop")
	}
	return out, nil
}

// Reply answers the inbox note with noteID.
func (a *App) Reply(ctx context.Context, noteID, content string) (mutation.Outcome, error) {
	note, err := a.NoteDetail(ctx, noteID)
	if err != nil {
		return mutation.Outcome{}, err
	}
	target := model.Note{}
	if note != nil {
		target = *note
	}

	out, err := a.Mutations.Reply(ctx, target, content)
	if err != nil {
		return out, err
	}
	if out.State.Kind == mutation.KindUnauthorized && !out.Local {
		a.unauthorized(ctx, "reply")
	}
	return out, nil
}

// CanReply reports whether a reply may be offered for note.
func (a *App) CanReply(note model.Note) bool {
	return a.Mutations.CanReply(note)
}

func (a *App) Profile(ctx context.Context) (model.Profile, error) {
	if !a.Session.Current().Active() {
		return model.Profile{}, ErrNotAuthenticated
	}
	p, err := a.profile.Get(ctx, ProfileWindow)
	if err != nil {
		a.checkUnauthorized(ctx, "profile", err)
		return model.Profile{}, err
	}
	return p, nil
}

// DeleteAccount removes the account on the service and ends the session.
func (a *App) DeleteAccount(ctx context.Context) (api.MessageResponse, error) {
	credential := a.Session.Credential()
	if credential == "" {
		return api.MessageResponse{}, ErrNotAuthenticated
	}
	resp, err := a.gateway.DeleteAccount(ctx, credential)
	if err != nil {
		a.checkUnauthorized(ctx, "delete-account", err)
		return api.MessageResponse{}, err
	}
	a.Session.ClearSession(ctx)
	return resp, nil
}

// Appreciate marks the inbox note with noteID as appreciated. The flag is
// local to this process. It reports false when the note is not available or
// was already appreciated.
func (a *App) Appreciate(ctx context.Context, noteID string) (mutation.Notice, bool, error) {
	note, err := a.NoteDetail(ctx, noteID)
	if err != nil {
		return mutation.Notice{}, false, err
	}
	if note == nil || !a.Appreciation.Mark(note.ID) {
		return mutation.Notice{}, false, nil
	}
	return mutation.Notice{Title: "Appreciated ❤️", Description: "Thanks for spreading kindness!"}, true, nil
}

func (a *App) IsAppreciated(noteID string) bool {
	return a.Appreciation.IsMarked(noteID)
}

// LiveSubscriber returns a subscriber that invalidates this app's inbox when
// the service pushes an inbox event.
func (a *App) LiveSubscriber(baseURL string) (*live.Subscriber, error) {
	return live.NewSubscriber(live.Config{
		BaseURL:    baseURL,
		Credential: a.Session.Credential,
		Logger:     a.logger,
	}, a.Inbox)
}
