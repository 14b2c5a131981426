package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"checkin/internal/attendance"
	"checkin/internal/auth"
	"checkin/internal/httpmiddleware"
	"checkin/internal/metrics"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps holds everything the router needs.
type Deps struct {
	Service         *attendance.Service
	Auth            *auth.Manager
	Log             *logrus.Logger
	Metrics         *metrics.Metrics
	Health          map[string]HealthCheck
	RateLimitPerMin int
	TrustedProxies  []string
	CORSOrigins     []string
	SecureCookies   bool
}

// NewRouter builds the gin engine with every page, API and ops route.
func NewRouter(d Deps) (*gin.Engine, error) {
	h, err := NewHandler(d.Service, d.Auth, d.Log, d.SecureCookies)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	// X-Forwarded-For is only honoured from these peers; nil means none
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(d.Log, "/healthz", "/metrics"))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.Metrics(d.Metrics))
	r.Use(auth.LoadIdentity(d.Auth))

	limiter := httpmiddleware.NewTokenBucket(0, d.RateLimitPerMin)
	limiter.Rejected = d.Metrics.RateLimited
	limit := limiter.GinMiddleware()

	r.GET("/", h.Index)
	for _, path := range []string{"/login", "/login_lider"} {
		r.GET(path, h.LoginForm)
		r.POST(path, limit, h.Login)
	}
	r.GET("/logout", h.Logout)
	r.GET("/cadastrar", h.RegisterForm)
	r.POST("/cadastrar", h.Register)
	for _, path := range []string{"/checkin", "/checkin_rapido"} {
		r.GET(path, h.CheckinForm)
		r.POST(path, limit, h.Checkin)
	}

	leader := r.Group("/", auth.RequireLeader(d.Auth))
	{
		leader.GET("/painel_lider", h.Dashboard)
		leader.POST("/checkin_lider", h.LeaderCheckin)
		leader.POST("/cadastrar_obreiro", h.LeaderRegister)
	}

	api := r.Group("/api")
	if len(d.CORSOrigins) > 0 {
		api.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{"GET", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
		// preflights are answered by the cors middleware before this runs
		api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}
	protected := api.Group("", auth.RequireLeaderAPI(d.Auth))
	{
		protected.GET("/checkins", h.APICheckins)
		protected.GET("/membros", h.APIMembers)
		protected.GET("/membros/:id/checkins", h.APIMemberHistory)
	}

	r.GET("/healthz", healthz(d.Health))
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	return r, nil
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := gin.H{"status": "ok"}
		for name, check := range checks {
			healthy := check(ctx)
			body[name] = healthy
			if !healthy {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
		c.JSON(status, body)
	}
}
