package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/session"
)

const identityKey = "identity"

type credentials struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  models.Identity `json:"user"`
}

func (s *Server) signUp(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	form := session.SignUpForm{Email: req.Email, Password: req.Password, ConfirmPassword: req.ConfirmPassword}
	if err := form.Validate(); err != nil {
		s.respondError(c, err)
		return
	}

	id, token, err := s.auth.SignUp(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse{Token: token, User: id})
}

func (s *Server) signIn(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		s.respondError(c, apperr.Validation("", "Email and password are required."))
		return
	}

	id, token, err := s.auth.SignIn(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token, User: id})
}

// requireAuth accepts "Authorization: Bearer <token>" and stores the
// token's identity on the gin context.
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is missing"})
		return
	}

	id, err := s.tokens.Parse(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	c.Set(identityKey, id)
	c.Next()
}

func identityFrom(c *gin.Context) models.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(models.Identity)
	return id
}

// requestSession is the fixed identity of one authenticated request. It
// never changes, so subscriptions are inert.
type requestSession struct {
	id models.Identity
}

func (r requestSession) Identity() (models.Identity, bool) {
	return r.id, true
}

func (r requestSession) Subscribe(func(context.Context, session.Change)) func() {
	return func() {}
}
