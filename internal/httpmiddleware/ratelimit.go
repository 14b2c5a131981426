package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// TokenBucket is an in-memory per-client rate limiter.
type TokenBucket struct {
	capacity int
	rate     int
	mu       sync.Mutex
	state    map[string]*bucket
	now      func() time.Time

	// Rejected, when set, is incremented for every refused request.
	Rejected prometheus.Counter
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter with capacity tokens refilled at perMinute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if perMinute <= 0 {
		perMinute = 30
	}
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		state:    make(map[string]*bucket),
		now:      time.Now,
	}
}

// GinMiddleware enforces per-IP limits. Refused requests get a 429 with a
// short neutral page.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			if l.Rejected != nil {
				l.Rejected.Inc()
			}
			c.Header("Retry-After", "60")
			c.Data(http.StatusTooManyRequests, "text/html; charset=utf-8", []byte(tooManyRequestsPage))
			c.Abort()
			return
		}
		c.Next()
	}
}

const tooManyRequestsPage = `<!doctype html><html lang="pt-BR"><head><meta charset="utf-8"><title>Aguarde</title></head>` +
	`<body><p>Muitas tentativas. Aguarde um minuto e tente novamente.</p><p><a href="/">Voltar</a></p></body></html>`

func (l *TokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.state[key]
	if !ok {
		l.prune(now)
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		// advance only by the time the whole tokens cost; the remainder carries over
		b.last = b.last.Add(time.Duration(float64(refill) / float64(l.rate) * float64(time.Minute)))
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// prune drops buckets that would already be full again. Caller holds mu.
func (l *TokenBucket) prune(now time.Time) {
	idle := time.Duration(float64(l.capacity)/float64(l.rate)*float64(time.Minute)) + time.Minute
	for k, b := range l.state {
		if now.Sub(b.last) > idle {
			delete(l.state, k)
		}
	}
}
