package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3nha-forte")
	require.NoError(t, err)
	assert.NotEqual(t, "s3nha-forte", hash)
	assert.True(t, VerifyPassword("s3nha-forte", hash))
	assert.False(t, VerifyPassword("errada", hash))
	assert.False(t, VerifyPassword("s3nha-forte", "not-a-hash"))
}

func TestIssueParse(t *testing.T) {
	id := Identity{SessionID: "sid-1", LeaderID: "leader-1", Name: "Pastor"}
	token, exp, err := Issue(id, "checkin", "key", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := Parse(token, "key", "checkin")
	require.NoError(t, err)
	assert.Equal(t, id, claims.Identity())

	_, err = Parse(token, "other-key", "checkin")
	assert.Error(t, err)

	_, err = Parse(token, "key", "someone-else")
	assert.Error(t, err)
}

func TestParse_Expired(t *testing.T) {
	token, _, err := Issue(Identity{SessionID: "s", LeaderID: "l"}, "", "key", -time.Minute)
	require.NoError(t, err)

	_, err = Parse(token, "key", "")
	assert.Error(t, err)
}

func TestInMemorySessions_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewInMemorySessions()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Create(ctx, Identity{SessionID: "a", LeaderID: "l"}, time.Minute))
	ok, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemorySessions_DeleteUnknown(t *testing.T) {
	s := NewInMemorySessions()
	assert.NoError(t, s.Delete(context.Background(), "missing"))
}

func newTestRouter(m *Manager) *gin.Engine {
	r := gin.New()
	r.Use(LoadIdentity(m))
	r.GET("/login-as", func(c *gin.Context) {
		if err := m.Login(c, "leader-1", "Pastor"); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.GET("/logout", func(c *gin.Context) {
		m.Logout(c)
		c.Status(http.StatusNoContent)
	})
	leader := r.Group("/", RequireLeader(m))
	leader.GET("/painel", func(c *gin.Context) {
		id, _ := LeaderFrom(c)
		c.String(http.StatusOK, id.Name)
	})
	api := r.Group("/api", RequireLeaderAPI(m))
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func do(r http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie set", CookieName)
	return nil
}

func TestRequireLeader_RedirectsAnonymous(t *testing.T) {
	m := NewManager(NewInMemorySessions(), "key", "checkin", time.Hour, false, logger.Discard())
	r := newTestRouter(m)

	w := do(r, "/painel")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = do(r, "/api/ping")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginLogoutCycle(t *testing.T) {
	m := NewManager(NewInMemorySessions(), "key", "checkin", time.Hour, false, logger.Discard())
	r := newTestRouter(m)

	cookie := sessionCookie(t, do(r, "/login-as"))

	w := do(r, "/painel", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Pastor", w.Body.String())

	w = do(r, "/logout", cookie)
	assert.Equal(t, http.StatusNoContent, w.Code)
	cleared := sessionCookie(t, w)
	assert.True(t, cleared.MaxAge < 0)

	// the old token is revoked server side even if the client replays it
	w = do(r, "/painel", cookie)
	assert.Equal(t, http.StatusFound, w.Code)

	// logout again is harmless
	w = do(r, "/logout", cookie)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, "/logout")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestForgedCookieRejected(t *testing.T) {
	m := NewManager(NewInMemorySessions(), "key", "checkin", time.Hour, false, logger.Discard())
	r := newTestRouter(m)

	token, _, err := Issue(Identity{SessionID: "never-registered", LeaderID: "x"}, "checkin", "key", time.Hour)
	require.NoError(t, err)

	w := do(r, "/painel", &http.Cookie{Name: CookieName, Value: token})
	assert.Equal(t, http.StatusFound, w.Code)
}

// Runs only against a real server: CHECKIN_TEST_REDIS=localhost:6379.
func TestRedisSessions(t *testing.T) {
	addr := os.Getenv("CHECKIN_TEST_REDIS")
	if addr == "" {
		t.Skip("CHECKIN_TEST_REDIS not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())

	s := NewRedisSessions(client, "checkin:test:"+t.Name()+":")
	id := Identity{SessionID: "sid", LeaderID: "leader"}
	require.NoError(t, s.Create(ctx, id, time.Minute))

	ok, err := s.Exists(ctx, "sid")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "sid"))
	ok, err = s.Exists(ctx, "sid")
	require.NoError(t, err)
	assert.False(t, ok)
}
