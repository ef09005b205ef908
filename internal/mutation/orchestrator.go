// Package mutation drives the drop and reply submissions.
//
// Each action moves Idle -> Submitting -> Accepted | Rejected(kind). Only one
// submission may be in flight at a time across both actions; a second one is
// refused with ErrSubmissionInFlight and changes nothing. Reset starts a new
// epoch: a result that lands after it is discarded with ErrSubmissionAbandoned.
package mutation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"dropnote/internal/api"
	"dropnote/internal/model"
)

var (
	ErrSubmissionInFlight  = errors.New("mutation: a submission is already in flight")
	ErrSubmissionAbandoned = errors.New("mutation: session changed while the submission was in flight")
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseAccepted
	PhaseRejected
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseSubmitting:
		return "Submitting"
	case PhaseAccepted:
		return "Accepted"
	case PhaseRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

type State struct {
	Phase Phase
	Kind  Kind
}

// Outcome is the result of one submission.
type Outcome struct {
	State  State
	Notice Notice
	// Status is the HTTP status behind a rejection; 0 for local rejections.
	Status int
	// Local is true when the submission was rejected before any network call.
	Local  bool
	NoteID string
}

func (o Outcome) Accepted() bool { return o.State.Phase == PhaseAccepted }

type Gateway interface {
	DropNote(ctx context.Context, credential, content string) (api.DropResponse, error)
	SendReply(ctx context.Context, credential, noteID, content string) (api.MessageResponse, error)
}

type CredentialSource interface {
	Credential() string
}

type Invalidator interface {
	Invalidate()
}

type Deps struct {
	Gateway     Gateway
	Credentials CredentialSource
	Inbox       Invalidator
	Logger      logrus.FieldLogger
	Now         func() time.Time
}

type Orchestrator struct {
	gateway Gateway
	creds   CredentialSource
	inbox   Invalidator
	logger  logrus.FieldLogger
	now     func() time.Time

	mu          sync.Mutex
	epoch       uint64
	inFlight    bool
	dropState   State
	replyState  State
	dropEnabled bool
	draft       string
	replied     map[string]bool
	listeners   []func(noteID string)
}

func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		gateway:     deps.Gateway,
		creds:       deps.Credentials,
		inbox:       deps.Inbox,
		logger:      logger,
		now:         now,
		dropEnabled: true,
		replied:     make(map[string]bool),
	}
}

// OnReplied registers fn to run once a reply to noteID is confirmed or the
// service reports the note as already replied.
func (o *Orchestrator) OnReplied(fn func(noteID string)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

func (o *Orchestrator) DropState() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropState
}

func (o *Orchestrator) ReplyState() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.replyState
}

func (o *Orchestrator) Submitting() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// CanDrop reports whether the drop trigger should be enabled.
func (o *Orchestrator) CanDrop() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropEnabled && !o.inFlight
}

// EnableDrop re-enables drops after a RateLimited rejection. The service
// owns the real reset time; the caller decides when to try again.
func (o *Orchestrator) EnableDrop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropEnabled = true
}

// CanReply reports whether the UI may offer a reply to note.
func (o *Orchestrator) CanReply(note model.Note) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.inFlight && !o.replied[note.ID] && note.Replyable(o.now())
}

// HasReplied reports whether a reply to noteID is known to exist.
func (o *Orchestrator) HasReplied(noteID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.replied[noteID]
}

func (o *Orchestrator) Draft() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.draft
}

func (o *Orchestrator) SetDraft(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.draft = text
}

// Reset returns both machines to Idle and forgets per-user state. A
// submission still in flight no longer blocks new ones and its result is
// dropped when it arrives.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.epoch++
	o.inFlight = false
	o.dropState = State{}
	o.replyState = State{}
	o.dropEnabled = true
	o.draft = ""
	o.replied = make(map[string]bool)
}

// Drop submits the day's note. The trimmed content is what gets sent.
func (o *Orchestrator) Drop(ctx context.Context, content string) (Outcome, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return Outcome{}, ErrSubmissionInFlight
	}

	text := strings.TrimSpace(content)
	if out, rejected := o.validateLocked(actionDrop, &o.dropState, text, model.MaxDropLength); rejected {
		o.mu.Unlock()
		return out, nil
	}
	if !o.dropEnabled {
		out := o.rejectLocked(actionDrop, &o.dropState, KindRateLimited, rejectionNotice(actionDrop, KindRateLimited, ""))
		o.mu.Unlock()
		return out, nil
	}
	credential := o.credential()
	if credential == "" {
		out := o.rejectLocked(actionDrop, &o.dropState, KindUnauthorized, rejectionNotice(actionDrop, KindUnauthorized, ""))
		o.mu.Unlock()
		return out, nil
	}
	o.inFlight = true
	o.dropState = State{Phase: PhaseSubmitting}
	epoch := o.epoch
	o.mu.Unlock()

	resp, err := o.gateway.DropNote(ctx, credential, text)

	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		o.logger.WithError(err).Debug("drop result discarded after session change")
		return Outcome{}, ErrSubmissionAbandoned
	}
	o.inFlight = false

	if err == nil {
		o.dropState = State{Phase: PhaseAccepted}
		o.draft = ""
		o.mu.Unlock()
		o.invalidate()
		o.logger.WithField("note_id", resp.NoteID).Info("drop accepted")
		return Outcome{State: State{Phase: PhaseAccepted}, Notice: dropAcceptedNotice(), NoteID: resp.NoteID}, nil
	}

	kind, status, msg := classify(actionDrop, err)
	o.dropState = State{Phase: PhaseRejected, Kind: kind}
	// Only RateLimited locks the trigger; every other rejection is retryable.
	o.dropEnabled = kind != KindRateLimited
	o.mu.Unlock()

	o.logger.WithFields(logrus.Fields{"status": status, "kind": kind.String()}).WithError(err).Warn("drop rejected")
	return Outcome{
		State:  State{Phase: PhaseRejected, Kind: kind},
		Notice: rejectionNotice(actionDrop, kind, msg),
		Status: status,
	}, nil
}

// Reply sends the one permitted reply to note.
func (o *Orchestrator) Reply(ctx context.Context, note model.Note, content string) (Outcome, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return Outcome{}, ErrSubmissionInFlight
	}

	text := strings.TrimSpace(content)
	if note.Replied || o.replied[note.ID] {
		o.replied[note.ID] = true
		out := o.rejectLocked(actionReply, &o.replyState, KindAlreadyReplied, rejectionNotice(actionReply, KindAlreadyReplied, ""))
		o.mu.Unlock()
		return out, nil
	}
	if note.ID == "" || (note.Role != "" && note.Role != model.RoleReceived) {
		out := o.rejectLocked(actionReply, &o.replyState, KindValidation, Notice{Title: "No note", Description: "Note not available."})
		o.mu.Unlock()
		return out, nil
	}
	if note.Expired(o.now()) {
		out := o.rejectLocked(actionReply, &o.replyState, KindValidation, Notice{Title: "Note expired", Description: "This note has disappeared and can no longer be answered."})
		o.mu.Unlock()
		return out, nil
	}
	if out, rejected := o.validateLocked(actionReply, &o.replyState, text, model.MaxReplyLength); rejected {
		o.mu.Unlock()
		return out, nil
	}
	credential := o.credential()
	if credential == "" {
		out := o.rejectLocked(actionReply, &o.replyState, KindUnauthorized, rejectionNotice(actionReply, KindUnauthorized, ""))
		o.mu.Unlock()
		return out, nil
	}
	o.inFlight = true
	o.replyState = State{Phase: PhaseSubmitting}
	epoch := o.epoch
	o.mu.Unlock()

	_, err := o.gateway.SendReply(ctx, credential, note.ID, text)

	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		o.logger.WithError(err).WithField("note_id", note.ID).Debug("reply result discarded after session change")
		return Outcome{}, ErrSubmissionAbandoned
	}
	o.inFlight = false

	if err == nil {
		o.replyState = State{Phase: PhaseAccepted}
		listeners := o.markRepliedLocked(note.ID)
		o.mu.Unlock()
		notify(listeners, note.ID)
		o.invalidate()
		o.logger.WithField("note_id", note.ID).Info("reply accepted")
		return Outcome{State: State{Phase: PhaseAccepted}, Notice: replyAcceptedNotice(), NoteID: note.ID}, nil
	}

	kind, status, msg := classify(actionReply, err)
	o.replyState = State{Phase: PhaseRejected, Kind: kind}
	var listeners []func(string)
	if kind == KindAlreadyReplied {
		// Terminal for this note: never offer a reply again.
		listeners = o.markRepliedLocked(note.ID)
	}
	o.mu.Unlock()
	notify(listeners, note.ID)

	o.logger.WithFields(logrus.Fields{"note_id": note.ID, "status": status, "kind": kind.String()}).WithError(err).Warn("reply rejected")
	return Outcome{
		State:  State{Phase: PhaseRejected, Kind: kind},
		Notice: rejectionNotice(actionReply, kind, msg),
		Status: status,
		NoteID: note.ID,
	}, nil
}

func (o *Orchestrator) validateLocked(act action, st *State, text string, limit int) (Outcome, bool) {
	if text == "" {
		return o.rejectLocked(act, st, KindValidation, emptyNotice(act)), true
	}
	if utf8.RuneCountInString(text) > limit {
		return o.rejectLocked(act, st, KindValidation, tooLongNotice(act, limit)), true
	}
	return Outcome{}, false
}

func (o *Orchestrator) rejectLocked(act action, st *State, kind Kind, notice Notice) Outcome {
	*st = State{Phase: PhaseRejected, Kind: kind}
	return Outcome{State: *st, Notice: notice, Local: true}
}

func (o *Orchestrator) credential() string {
	if o.creds == nil {
		return ""
	}
	return o.creds.Credential()
}

func (o *Orchestrator) invalidate() {
	if o.inbox != nil {
		o.inbox.Invalidate()
	}
}

// markRepliedLocked records noteID as replied and returns the listeners to
// notify once the lock is released.
func (o *Orchestrator) markRepliedLocked(noteID string) []func(string) {
	o.replied[noteID] = true
	return append([]func(string){}, o.listeners...)
}

func notify(listeners []func(string), noteID string) {
	for _, fn := range listeners {
		fn(noteID)
	}
}
