package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dropnote/internal/hub"
	"dropnote/internal/middleware"
	"dropnote/internal/store"
)

type AccountHandler struct {
	Store       *store.Store
	Hub         *hub.Hub
	DropLimiter *middleware.RateLimiter
}

func (h *AccountHandler) Profile(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid authentication token"})
		return
	}

	account, ok := h.Store.Account(userID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Account not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        account.ID,
		"email":     account.Email,
		"createdAt": account.CreatedAt,
	})
}

// Delete erases the account and every note it sent or received.
func (h *AccountHandler) Delete(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid authentication token"})
		return
	}

	affected, ok := h.Store.DeleteAccount(userID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Account not found"})
		return
	}
	if h.DropLimiter != nil {
		h.DropLimiter.Reset(userID)
	}
	if h.Hub != nil {
		for _, other := range affected {
			h.Hub.Publish(other, hub.EventInbox, gin.H{"t": "note-removed"})
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account and all associated data deleted"})
}
