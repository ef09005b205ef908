package model

import "time"

// NoteLifetime is how long a note stays visible after it is created.
const NoteLifetime = 24 * time.Hour

const (
	MaxDropLength  = 250
	MaxReplyLength = 200
)

type Role string

const (
	RoleSent     Role = "sent"
	RoleReceived Role = "received"
)

type Note struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Replied    bool      `json:"replied"`
	SenderID   string    `json:"senderId,omitempty"`
	ReceiverID string    `json:"receiverId,omitempty"`
	Role       Role      `json:"role"`
}

// Expiry returns the moment the note disappears. A note never outlives
// CreatedAt+NoteLifetime, whatever ExpiresAt the service reported.
func (n Note) Expiry() time.Time {
	if n.CreatedAt.IsZero() {
		return n.ExpiresAt
	}
	limit := n.CreatedAt.Add(NoteLifetime)
	if n.ExpiresAt.IsZero() || n.ExpiresAt.After(limit) {
		return limit
	}
	return n.ExpiresAt
}

func (n Note) Expired(now time.Time) bool {
	exp := n.Expiry()
	if exp.IsZero() {
		return false
	}
	return !exp.After(now)
}

// Replyable reports whether the UI may offer a reply for the note.
func (n Note) Replyable(now time.Time) bool {
	return n.Role == RoleReceived && !n.Replied && !n.Expired(now)
}

type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Account is the dev server's record of a registered user.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Reply is the dev server's record of the single answer to a note.
type Reply struct {
	NoteID    string    `json:"noteId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
