package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dropnote/internal/auth"
	"dropnote/internal/store"
)

const minPasswordLength = 6

type AuthHandler struct {
	Store       *store.Store
	TokenConfig auth.TokenConfig
	Logger      logrus.FieldLogger
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (b credentialsBody) validate() string {
	email := strings.TrimSpace(b.Email)
	if email == "" || b.Password == "" {
		return "Email and password are required"
	}
	if !strings.Contains(email, "@") {
		return "Invalid email address"
	}
	return ""
}

func (h *AuthHandler) Register(c *gin.Context) {
	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}
	if msg := body.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": msg})
		return
	}
	if len(body.Password) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Password must be at least 6 characters"})
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Registration failed"})
		return
	}
	account, err := h.Store.CreateAccount(body.Email, hash)
	if errors.Is(err, store.ErrEmailTaken) {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Registration failed"})
		return
	}

	h.issue(c, account.ID, account.Email)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}
	if msg := body.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": msg})
		return
	}

	account, ok := h.Store.AccountByEmail(body.Email)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": auth.ErrInvalidCredentials.Error()})
		return
	}
	if err := auth.VerifyPassword(account.PasswordHash, body.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
		return
	}

	h.issue(c, account.ID, account.Email)
}

func (h *AuthHandler) issue(c *gin.Context, userID, email string) {
	token, err := auth.CreateToken(userID, email, h.TokenConfig)
	if err != nil {
		logger(h.Logger).WithError(err).Error("token creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Token creation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"credential": token,
		"user":       gin.H{"id": userID, "email": email},
	})
}

func logger(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return logrus.StandardLogger()
	}
	return l
}
