package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// CookieName is the cookie that carries the access token.
const CookieName = "facewatch_token"

// ErrTokenRevoked is returned for tokens that were logged out.
var ErrTokenRevoked = errors.New("token revoked")

// Claims are the JWT claims of an access token. Subject holds the user id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID returns the numeric user id from the subject claim.
func (c *Claims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// TokenManager issues and validates HS256 access tokens
type TokenManager struct {
	secret  []byte
	ttl     time.Duration
	secure  bool
	revoked *cache.Cache // token id -> struct{}, kept until the token would expire
	now     func() time.Time
}

// NewTokenManager creates a token manager. secure sets the Secure flag on cookies.
func NewTokenManager(secret string, ttl time.Duration, secure bool) *TokenManager {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &TokenManager{
		secret:  []byte(secret),
		ttl:     ttl,
		secure:  secure,
		revoked: cache.New(ttl, 10*time.Minute),
		now:     time.Now,
	}
}

// TTL returns the token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue signs a token for the user.
func (tm *TokenManager) Issue(userID int64, username string) (string, *Claims, error) {
	now := tm.now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return token, claims, nil
}

// Parse validates the signature, expiry and revocation state of a token.
func (tm *TokenManager) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if _, found := tm.revoked.Get(claims.ID); found {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke rejects the token until it expires.
func (tm *TokenManager) Revoke(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	ttl := tm.ttl
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(tm.now())
	}
	if ttl > 0 {
		tm.revoked.Set(claims.ID, struct{}{}, ttl)
	}
}

// SetCookie stores the token in an HttpOnly cookie.
func (tm *TokenManager) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   tm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(tm.ttl.Seconds()),
	})
}

// ClearCookie expires the token cookie.
func (tm *TokenManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   tm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// TokenFromRequest returns the bearer token, falling back to the cookie.
func TokenFromRequest(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}
