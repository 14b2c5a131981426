package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CookieName is the session cookie set after a leader logs in.
const CookieName = "checkin_session"

const identityKey = "auth.identity"

// Manager issues, checks and revokes leader sessions.
type Manager struct {
	sessions Sessions
	key      string
	issuer   string
	ttl      time.Duration
	secure   bool
	log      *logrus.Logger
}

// NewManager wires a session registry with the cookie signing settings.
// An empty key is replaced by a random per-process key, which logs every
// leader out on restart.
func NewManager(sessions Sessions, key, issuer string, ttl time.Duration, secure bool, log *logrus.Logger) *Manager {
	if key == "" {
		log.Warn("SESSION_SIGNING_KEY not set, using a random key for this process")
		key = uuid.NewString() + uuid.NewString()
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{sessions: sessions, key: key, issuer: issuer, ttl: ttl, secure: secure, log: log}
}

// Login starts a new session for the leader and sets the cookie.
func (m *Manager) Login(c *gin.Context, leaderID, name string) error {
	id := Identity{SessionID: uuid.NewString(), LeaderID: leaderID, Name: name}
	if err := m.sessions.Create(c.Request.Context(), id, m.ttl); err != nil {
		return err
	}
	token, _, err := Issue(id, m.issuer, m.key, m.ttl)
	if err != nil {
		_ = m.sessions.Delete(c.Request.Context(), id.SessionID)
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(m.ttl.Seconds()), "/", "", m.secure, true)
	c.Set(identityKey, id)
	return nil
}

// Logout revokes the current session, if any, and expires the cookie.
// It is safe to call when nobody is logged in.
func (m *Manager) Logout(c *gin.Context) {
	if raw, err := c.Cookie(CookieName); err == nil && raw != "" {
		if claims, err := Parse(raw, m.key, m.issuer); err == nil {
			if err := m.sessions.Delete(c.Request.Context(), claims.ID); err != nil {
				m.log.WithError(err).Warn("failed to revoke session")
			}
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", m.secure, true)
	c.Set(identityKey, nil)
}

// Current resolves the session cookie to a live identity.
func (m *Manager) Current(c *gin.Context) (Identity, bool) {
	raw, err := c.Cookie(CookieName)
	if err != nil || raw == "" {
		return Identity{}, false
	}
	claims, err := Parse(raw, m.key, m.issuer)
	if err != nil {
		return Identity{}, false
	}
	ok, err := m.sessions.Exists(c.Request.Context(), claims.ID)
	if err != nil {
		m.log.WithError(err).Error("session registry lookup failed")
		return Identity{}, false
	}
	if !ok {
		return Identity{}, false
	}
	return claims.Identity(), true
}

// LoadIdentity makes the current identity, when there is one, available to
// handlers and templates on every route. It never blocks a request.
func LoadIdentity(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := m.Current(c); ok {
			c.Set(identityKey, id)
		}
		c.Next()
	}
}

// RequireLeader guards page routes: anonymous requests are redirected to
// the login page and nothing downstream runs.
func RequireLeader(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := leaderOrCurrent(m, c); !ok {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireLeaderAPI guards JSON routes with a 401 instead of a redirect.
func RequireLeaderAPI(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := leaderOrCurrent(m, c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func leaderOrCurrent(m *Manager, c *gin.Context) (Identity, bool) {
	if id, ok := LeaderFrom(c); ok {
		return id, true
	}
	id, ok := m.Current(c)
	if ok {
		c.Set(identityKey, id)
	}
	return id, ok
}

// LeaderFrom returns the identity stored on the request context.
func LeaderFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
