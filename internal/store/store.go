package store

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dropnote/internal/model"
)

var (
	ErrEmailTaken      = errors.New("Email already registered")
	ErrAccountNotFound = errors.New("Account not found")
	ErrNoReceivers     = errors.New("No receivers available right now")
	ErrNoteNotFound    = errors.New("Note not found")
	ErrNoteExpired     = errors.New("Note has expired")
	ErrAlreadyReplied  = errors.New("You have already replied to this note")
)

type Store struct {
	mu sync.RWMutex

	stateFile string
	persistMu sync.Mutex

	noteTTL time.Duration
	now     func() time.Time
	logger  logrus.FieldLogger

	accountsByID     map[string]model.Account
	accountIDByEmail map[string]string

	notesByID   map[string]model.Note
	inboxByUser map[string]string // receiverID -> noteID
	replies     map[string]model.Reply
}

type Options struct {
	StateFile string
	NoteTTL   time.Duration
	Now       func() time.Time
	Logger    logrus.FieldLogger
}

func New() *Store {
	return NewWithOptions(Options{})
}

func NewWithOptions(opts Options) *Store {
	s := &Store{
		stateFile:        opts.StateFile,
		noteTTL:          opts.NoteTTL,
		now:              opts.Now,
		logger:           opts.Logger,
		accountsByID:     make(map[string]model.Account),
		accountIDByEmail: make(map[string]string),
		notesByID:        make(map[string]model.Note),
		inboxByUser:      make(map[string]string),
		replies:          make(map[string]model.Reply),
	}
	if s.noteTTL <= 0 || s.noteTTL > model.NoteLifetime {
		s.noteTTL = model.NoteLifetime
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}

	if s.stateFile != "" {
		if err := s.loadFromFile(s.stateFile); err != nil {
			s.logger.WithError(err).WithField("file", s.stateFile).Warn("state persistence: load failed")
		}
	}

	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount registers email with an already hashed password.
func (s *Store) CreateAccount(email, passwordHash string) (model.Account, error) {
	key := normalizeEmail(email)

	s.mu.Lock()
	if _, ok := s.accountIDByEmail[key]; ok {
		s.mu.Unlock()
		return model.Account{}, ErrEmailTaken
	}

	acc := model.Account{
		ID:           uuid.NewString(),
		Email:        key,
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC(),
	}
	s.accountsByID[acc.ID] = acc
	s.accountIDByEmail[key] = acc.ID
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snapshot)
	return acc, nil
}

func (s *Store) AccountByEmail(email string) (model.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.accountIDByEmail[normalizeEmail(email)]
	if !ok {
		return model.Account{}, false
	}
	acc, ok := s.accountsByID[id]
	return acc, ok
}

func (s *Store) Account(userID string) (model.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accountsByID[userID]
	return acc, ok
}

// DeleteAccount removes the account together with every note it sent or
// received. It returns the ids of other users whose inbox changed.
func (s *Store) DeleteAccount(userID string) ([]string, bool) {
	s.mu.Lock()

	acc, ok := s.accountsByID[userID]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	delete(s.accountsByID, userID)
	delete(s.accountIDByEmail, acc.Email)
	delete(s.inboxByUser, userID)

	var affected []string
	for id, n := range s.notesByID {
		if n.SenderID != userID && n.ReceiverID != userID {
			continue
		}
		delete(s.notesByID, id)
		delete(s.replies, id)
		if n.ReceiverID != userID && s.inboxByUser[n.ReceiverID] == id {
			delete(s.inboxByUser, n.ReceiverID)
			affected = append(affected, n.ReceiverID)
		}
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snapshot)
	sort.Strings(affected)
	return affected, true
}

// DropNote stores a note from senderID and hands it to one other user.
// Users with an empty inbox are preferred, oldest account first.
func (s *Store) DropNote(senderID, content string) (model.Note, error) {
	s.mu.Lock()

	if _, ok := s.accountsByID[senderID]; !ok {
		s.mu.Unlock()
		return model.Note{}, ErrAccountNotFound
	}

	now := s.now().UTC()
	receiverID, ok := s.pickReceiverLocked(senderID, now)
	if !ok {
		s.mu.Unlock()
		return model.Note{}, ErrNoReceivers
	}

	note := model.Note{
		ID:         uuid.NewString(),
		Content:    content,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.noteTTL),
		SenderID:   senderID,
		ReceiverID: receiverID,
	}
	s.notesByID[note.ID] = note
	s.inboxByUser[receiverID] = note.ID
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snapshot)
	return note, nil
}

func (s *Store) pickReceiverLocked(senderID string, now time.Time) (string, bool) {
	candidates := make([]model.Account, 0, len(s.accountsByID))
	for id, acc := range s.accountsByID {
		if id != senderID {
			candidates = append(candidates, acc)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	busy := func(userID string) bool {
		n, ok := s.notesByID[s.inboxByUser[userID]]
		return ok && n.Expiry().After(now)
	}
	sort.Slice(candidates, func(i, j int) bool {
		bi, bj := busy(candidates[i].ID), busy(candidates[j].ID)
		if bi != bj {
			return !bi
		}
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0].ID, true
}

// Inbox returns the note currently delivered to userID, or nil. The sender
// is never revealed.
func (s *Store) Inbox(userID string) *model.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notesByID[s.inboxByUser[userID]]
	if !ok || n.Expired(s.now()) {
		return nil
	}
	n.Role = model.RoleReceived
	n.SenderID = ""
	return &n
}

// Reply records userID's answer to noteID. The returned note carries the
// sender id so the caller can notify them.
func (s *Store) Reply(userID, noteID, content string) (model.Note, error) {
	s.mu.Lock()

	n, ok := s.notesByID[noteID]
	if !ok || n.ReceiverID != userID {
		s.mu.Unlock()
		return model.Note{}, ErrNoteNotFound
	}
	now := s.now().UTC()
	if n.Expired(now) {
		s.mu.Unlock()
		return model.Note{}, ErrNoteExpired
	}
	if n.Replied {
		s.mu.Unlock()
		return model.Note{}, ErrAlreadyReplied
	}

	n.Replied = true
	s.notesByID[noteID] = n
	s.replies[noteID] = model.Reply{NoteID: noteID, AuthorID: userID, Content: content, CreatedAt: now}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snapshot)
	return n, nil
}

func (s *Store) ReplyFor(noteID string) (model.Reply, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.replies[noteID]
	return r, ok
}
