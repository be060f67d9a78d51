package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/models"
)

var (
	ErrNoToken      = apperr.New(apperr.Unauthorized, "authentication required")
	ErrInvalidToken = apperr.New(apperr.Unauthorized, "invalid token")
	ErrNotAdmin     = apperr.New(apperr.Forbidden, "admin access required")
)

const (
	identityKey = "auth.identity"
	cookieName  = "token"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID  string
	IsAdmin bool
}

// UserFinder loads the user a token names. *users.Store satisfies it.
type UserFinder interface {
	Find(ctx context.Context, id string) (*models.User, error)
}

// Authenticator verifies HS256 tokens and resolves them to users.
type Authenticator struct {
	secret []byte
	users  UserFinder
}

// NewAuthenticator returns an Authenticator keyed by secret.
func NewAuthenticator(secret string, users UserFinder) *Authenticator {
	return &Authenticator{secret: []byte(secret), users: users}
}

type claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// Issue signs a token for userID. Used by tooling and tests.
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
}

// Authenticate resolves a raw token to an Identity.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (*Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, apperr.Wrap(ErrInvalidToken, err)
	}

	userID := c.ID
	if userID == "" {
		userID = c.Subject
	}
	if userID == "" {
		return nil, ErrInvalidToken
	}

	u, err := a.users.Find(ctx, userID)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return &Identity{UserID: u.ID, IsAdmin: u.IsAdmin}, nil
}

func tokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		return ""
	}
	if v, err := c.Cookie(cookieName); err == nil {
		return v
	}
	return ""
}

// Required rejects requests without a valid identity.
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFrom(c)
		if raw == "" {
			abort(c, ErrNoToken)
			return
		}
		id, err := a.Authenticate(c.Request.Context(), raw)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// Optional attaches an identity when a valid token is present and otherwise lets
// the request through anonymously.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := tokenFrom(c); raw != "" {
			if id, err := a.Authenticate(c.Request.Context(), raw); err == nil {
				c.Set(identityKey, id)
			}
		}
		c.Next()
	}
}

// Admin must run after Required.
func Admin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := FromContext(c)
		if !ok || !id.IsAdmin {
			abort(c, ErrNotAdmin)
			return
		}
		c.Next()
	}
}

// FromContext returns the identity set by Required or Optional.
func FromContext(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok
}

func abort(c *gin.Context, err error) {
	status := http.StatusUnauthorized
	switch apperr.KindOf(err) {
	case apperr.Forbidden:
		status = http.StatusForbidden
	case apperr.Internal:
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err)})
}
