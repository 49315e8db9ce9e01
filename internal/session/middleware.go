package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieName holds the signed session token.
const CookieName = "absensi_session"

const contextKey = "session"

// Manager reads and writes the session cookie.
type Manager struct {
	key    string
	ttl    time.Duration
	secure bool
}

// NewManager creates a manager signing with key. secure marks cookies HTTPS-only.
func NewManager(key string, ttl time.Duration, secure bool) *Manager {
	return &Manager{key: key, ttl: ttl, secure: secure}
}

// Load parses the session cookie, if any, into the request context.
// Invalid or expired cookies are ignored.
func (m *Manager) Load() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := c.Cookie(CookieName); err == nil && raw != "" {
			if claims, err := Parse(raw, m.key); err == nil {
				c.Set(contextKey, claims)
			}
		}
		c.Next()
	}
}

// Remember stores userID as the last user scanned from this browser.
func (m *Manager) Remember(c *gin.Context, userID string) error {
	token, exp, err := Issue(userID, m.key, m.ttl, time.Now())
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(time.Until(exp).Seconds()), "/", "", m.secure, true)
	return nil
}

// LastUserID returns the user id from the loaded session, or "".
func LastUserID(c *gin.Context) string {
	v, ok := c.Get(contextKey)
	if !ok {
		return ""
	}
	claims, _ := v.(Claims)
	return claims.UserID
}
