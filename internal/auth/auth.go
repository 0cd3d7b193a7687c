// Package auth issues and decodes signed session tokens and exposes gin
// middleware that materializes the request session from them.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"video-cloud/internal/domain"
)

const (
	// DefaultMaxAge is how long a freshly issued session stays valid.
	DefaultMaxAge = 30 * 24 * time.Hour

	// DefaultUpdateAge is how old a cookie session may get before it is re-issued.
	DefaultUpdateAge = 24 * time.Hour

	// CookieName carries the session token for browser clients.
	CookieName = "session-token"

	sessionContextKey = "auth.session"
)

// Claims is the token payload: the user identity plus registered claims.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Pages are the client-facing entry points unauthenticated or failed
// requests are sent to.
type Pages struct {
	SignIn string
	Error  string
}

type Config struct {
	Secret       string
	MaxAge       time.Duration
	UpdateAge    time.Duration
	Pages        Pages
	SecureCookie bool
}

// Issuer mints and validates HS256 session tokens.
type Issuer struct {
	secret       []byte
	maxAge       time.Duration
	updateAge    time.Duration
	pages        Pages
	secureCookie bool
	now          func() time.Time
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("session secret is required: %w", domain.ErrConfiguration)
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.UpdateAge <= 0 {
		cfg.UpdateAge = DefaultUpdateAge
	}
	if cfg.Pages.SignIn == "" {
		cfg.Pages.SignIn = "/login"
	}
	if cfg.Pages.Error == "" {
		cfg.Pages.Error = cfg.Pages.SignIn
	}
	return &Issuer{
		secret:       []byte(cfg.Secret),
		maxAge:       cfg.MaxAge,
		updateAge:    cfg.UpdateAge,
		pages:        cfg.Pages,
		secureCookie: cfg.SecureCookie,
		now:          time.Now,
	}, nil
}

func (i *Issuer) MaxAge() time.Duration { return i.maxAge }

func (i *Issuer) Pages() Pages { return i.pages }

// Issue signs a new token for identity, valid for MaxAge from now.
func (i *Issuer) Issue(identity domain.Identity) (string, time.Time, error) {
	return i.Refresh(&Claims{
		ID:    identity.ID,
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: identity.ID,
		},
	})
}

// Refresh re-signs claims with a fresh issue time and expiry. Everything
// else in the claim set is carried forward.
func (i *Issuer) Refresh(claims *Claims) (string, time.Time, error) {
	if claims == nil {
		return "", time.Time{}, errors.New("claims are required")
	}
	now := i.now()
	expires := now.Add(i.maxAge)

	next := *claims
	next.IssuedAt = jwt.NewNumericDate(now)
	next.ExpiresAt = jwt.NewNumericDate(expires)

	token, err := i.sign(&next)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

func (i *Issuer) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse validates tokenString and returns its claims.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.ID == "" {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}

func sessionFor(claims *Claims) *domain.Session {
	return &domain.Session{
		User:    domain.Identity{ID: claims.ID, Email: claims.Email},
		Expires: claims.ExpiresAt.Time,
	}
}

// stale reports whether a token is old enough to be re-issued.
func (i *Issuer) stale(claims *Claims) bool {
	if claims.IssuedAt == nil {
		return true
	}
	return i.now().Sub(claims.IssuedAt.Time) >= i.updateAge
}

// Sessions resolves the session for every request from the session cookie
// or an Authorization bearer header. Invalid, expired or empty tokens leave
// the request anonymous. Cookie sessions older than the update age are
// re-issued with a fresh lifetime.
func (i *Issuer) Sessions() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, fromCookie := tokenFromRequest(c.Request)
		if token == "" {
			c.Next()
			return
		}
		claims, err := i.Parse(token)
		if err != nil {
			c.Next()
			return
		}

		session := sessionFor(claims)
		if fromCookie && i.stale(claims) {
			if refreshed, expires, err := i.Refresh(claims); err == nil {
				i.SetCookie(c, refreshed)
				session.Expires = expires
			}
		}
		c.Set(sessionContextKey, session)
		c.Next()
	}
}

// RequireSession rejects anonymous requests. Browser navigations are
// redirected to the sign-in page, API callers get 401.
func (i *Issuer) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if SessionFrom(c) != nil {
			c.Next()
			return
		}
		if wantsHTML(c.Request) {
			c.Redirect(http.StatusFound, i.SignInURL(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
}

// SignInURL points at the sign-in page, remembering where to return.
func (i *Issuer) SignInURL(callback string) string {
	if callback == "" {
		return i.pages.SignIn
	}
	return i.pages.SignIn + "?" + url.Values{"callbackUrl": {callback}}.Encode()
}

// ErrorURL points at the error page carrying a generic error code.
func (i *Issuer) ErrorURL(code string) string {
	return i.pages.Error + "?" + url.Values{"error": {code}}.Encode()
}

// SetCookie stores token in the session cookie for the issuer's lifetime.
func (i *Issuer) SetCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(i.maxAge / time.Second),
		HttpOnly: true,
		Secure:   i.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (i *Issuer) ClearCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   i.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionFrom returns the session resolved by Sessions, or nil.
func SessionFrom(c *gin.Context) *domain.Session {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	session, _ := v.(*domain.Session)
	return session
}

// tokenFromRequest prefers the bearer header and reports whether the token
// came from the session cookie.
func tokenFromRequest(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token), false
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value, true
	}
	return "", false
}

func wantsHTML(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}
