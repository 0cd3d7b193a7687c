package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"video-cloud/internal/auth"
	"video-cloud/internal/domain"
)

// signInErrorCode is the only reason a failed sign-in ever reports.
const signInErrorCode = "CredentialsSignin"

type credentialsRequest struct {
	Email       string `json:"email" form:"email"`
	Password    string `json:"password" form:"password"`
	CallbackURL string `json:"callbackUrl" form:"callbackUrl"`
}

type SessionResponse struct {
	User    *domain.Identity `json:"user,omitempty"`
	Expires string           `json:"expires,omitempty"`
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	identity, err := h.users.Register(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		h.logger.WithField("user", identity.ID).Info("user registered")
		c.JSON(http.StatusCreated, identity)
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email and a password of at least 8 characters are required"})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
	default:
		h.logger.WithError(err).Error("register user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
	}
}

// signIn accepts JSON from API clients and form posts from the sign-in page.
// Form posts are answered with redirects, JSON with status codes.
func (h *Handler) signIn(c *gin.Context) {
	form := isFormPost(c)

	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		h.signInFailed(c, form, http.StatusBadRequest, signInErrorCode)
		return
	}

	identity, err := h.users.Verify(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrAuthentication) {
			h.logger.WithError(err).Debug("sign in rejected")
			h.signInFailed(c, form, http.StatusUnauthorized, signInErrorCode)
			return
		}
		h.logger.WithError(err).Error("sign in")
		h.signInFailed(c, form, http.StatusInternalServerError, "Default")
		return
	}

	token, expires, err := h.issuer.Issue(*identity)
	if err != nil {
		h.logger.WithError(err).Error("issue session token")
		h.signInFailed(c, form, http.StatusInternalServerError, "Default")
		return
	}
	h.issuer.SetCookie(c, token)

	if form {
		c.Redirect(http.StatusFound, safeCallback(req.CallbackURL))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":    identity,
		"token":   token,
		"expires": expires.UTC().Format(isoMillis),
	})
}

func (h *Handler) signInFailed(c *gin.Context, form bool, status int, code string) {
	if form {
		c.Redirect(http.StatusFound, h.issuer.ErrorURL(code))
		return
	}
	c.JSON(status, gin.H{"error": code})
}

func (h *Handler) signOut(c *gin.Context) {
	h.issuer.ClearCookie(c)
	c.JSON(http.StatusOK, gin.H{})
}

// currentSession re-reads the user behind the token, so a token for a
// deleted account stops resolving.
func (h *Handler) currentSession(c *gin.Context) {
	session := auth.SessionFrom(c)
	if session == nil {
		c.JSON(http.StatusOK, SessionResponse{})
		return
	}

	identity, err := h.users.GetByID(c.Request.Context(), session.User.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.issuer.ClearCookie(c)
		c.JSON(http.StatusOK, SessionResponse{})
		return
	case err != nil:
		h.logger.WithError(err).WithField("user", session.User.ID).Error("load session user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		User:    identity,
		Expires: session.Expires.UTC().Format(isoMillis),
	})
}

func isFormPost(c *gin.Context) bool {
	switch c.ContentType() {
	case gin.MIMEPOSTForm, gin.MIMEMultipartPOSTForm:
		return true
	}
	return false
}

// safeCallback only follows same-site relative paths.
func safeCallback(callback string) string {
	if !strings.HasPrefix(callback, "/") || strings.HasPrefix(callback, "//") || strings.HasPrefix(callback, "/\\") {
		return "/"
	}
	return callback
}
