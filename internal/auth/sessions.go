package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sessions tracks which signed session ids are still live, so logout can
// revoke a token before it expires.
type Sessions interface {
	Create(ctx context.Context, id Identity, ttl time.Duration) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	Delete(ctx context.Context, sessionID string) error
}

// InMemorySessions is a process-local registry for dev and single-instance deployments.
type InMemorySessions struct {
	mu      sync.Mutex
	now     func() time.Time
	expires map[string]time.Time
}

// NewInMemorySessions creates an empty registry.
func NewInMemorySessions() *InMemorySessions {
	return &InMemorySessions{now: time.Now, expires: make(map[string]time.Time)}
}

// Create registers a session until ttl elapses.
func (s *InMemorySessions) Create(_ context.Context, id Identity, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for sid, exp := range s.expires {
		if !exp.After(now) {
			delete(s.expires, sid)
		}
	}
	s.expires[id.SessionID] = now.Add(ttl)
	return nil
}

// Exists reports whether the session is registered and unexpired.
func (s *InMemorySessions) Exists(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expires[sessionID]
	if !ok {
		return false, nil
	}
	if !exp.After(s.now()) {
		delete(s.expires, sessionID)
		return false, nil
	}
	return true, nil
}

// Delete forgets the session. Unknown ids are ignored.
func (s *InMemorySessions) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expires, sessionID)
	return nil
}

// RedisSessions keeps sessions as expiring keys so several instances share them.
type RedisSessions struct {
	client *redis.Client
	prefix string
}

// NewRedisSessions builds a registry storing keys under prefix.
func NewRedisSessions(client *redis.Client, prefix string) *RedisSessions {
	if prefix == "" {
		prefix = "checkin:session:"
	}
	return &RedisSessions{client: client, prefix: prefix}
}

// Create stores the leader id under the session key with ttl.
func (s *RedisSessions) Create(ctx context.Context, id Identity, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+id.SessionID, id.LeaderID, ttl).Err()
}

// Exists reports whether the session key is present.
func (s *RedisSessions) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes the session key.
func (s *RedisSessions) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.prefix+sessionID).Err()
}
