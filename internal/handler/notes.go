package handler

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dropnote/internal/hub"
	"dropnote/internal/middleware"
	"dropnote/internal/model"
	"dropnote/internal/store"
)

type NoteHandler struct {
	Store *store.Store
	Hub   *hub.Hub
	// DropLimiter holds the one-drop-per-window quota, keyed by user id.
	DropLimiter *middleware.RateLimiter
	Logger      logrus.FieldLogger
}

type contentBody struct {
	Content string `json:"content"`
}

func readContent(c *gin.Context, limit int, what string) (string, bool) {
	var body contentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return "", false
	}
	content := strings.TrimSpace(body.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": what + " cannot be empty"})
		return "", false
	}
	if utf8.RuneCountInString(content) > limit {
		c.JSON(http.StatusBadRequest, gin.H{"message": what + " is too long"})
		return "", false
	}
	return content, true
}

func (h *NoteHandler) Drop(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid authentication token"})
		return
	}
	content, ok := readContent(c, model.MaxDropLength, "Note")
	if !ok {
		return
	}

	if h.DropLimiter != nil && !h.DropLimiter.Allow(userID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"message": "You have already dropped a note today"})
		return
	}

	note, err := h.Store.DropNote(userID, content)
	if err != nil {
		if h.DropLimiter != nil {
			h.DropLimiter.Undo(userID)
		}
		switch {
		case errors.Is(err, store.ErrNoReceivers):
			c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
		case errors.Is(err, store.ErrAccountNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
		default:
			logger(h.Logger).WithError(err).Error("drop failed")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Drop failed"})
		}
		return
	}

	logger(h.Logger).WithField("note_id", note.ID).Debug("note dropped")
	if h.Hub != nil {
		h.Hub.Publish(note.ReceiverID, hub.EventInbox, gin.H{"t": "note-received"})
	}
	c.JSON(http.StatusOK, gin.H{"message": "Note dropped", "noteId": note.ID})
}

func (h *NoteHandler) Inbox(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid authentication token"})
		return
	}
	if _, ok := h.Store.Account(userID); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Account not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"note": h.Store.Inbox(userID)})
}

func (h *NoteHandler) Reply(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid authentication token"})
		return
	}
	noteID := c.Param("id")
	content, ok := readContent(c, model.MaxReplyLength, "Reply")
	if !ok {
		return
	}

	note, err := h.Store.Reply(userID, noteID, content)
	switch {
	case errors.Is(err, store.ErrAlreadyReplied):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
		return
	case errors.Is(err, store.ErrNoteExpired):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	case errors.Is(err, store.ErrNoteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
		return
	case err != nil:
		logger(h.Logger).WithError(err).Error("reply failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Reply failed"})
		return
	}

	if h.Hub != nil {
		h.Hub.Publish(note.SenderID, hub.EventInbox, gin.H{"t": "reply-received", "noteId": note.ID})
		h.Hub.Publish(userID, hub.EventInbox, gin.H{"t": "note-replied", "noteId": note.ID})
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reply sent"})
}
