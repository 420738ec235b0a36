package storetest

import (
	"context"
	"sync"
	"time"

	"picker-service/internal/redisclient"
)

// Sessions is an in-memory bearer token store. TTLs are recorded, not enforced.
type Sessions struct {
	mu     sync.Mutex
	tokens map[string]int64
	ttls   map[string]time.Duration
}

// NewSessions returns an empty session store
func NewSessions() *Sessions {
	return &Sessions{tokens: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (s *Sessions) SetSession(ctx context.Context, token string, agentID int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = agentID
	s.ttls[token] = ttl
	return nil
}

func (s *Sessions) GetSession(ctx context.Context, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agentID, ok := s.tokens[token]
	if !ok {
		return 0, redisclient.ErrSessionNotFound
	}
	return agentID, nil
}

func (s *Sessions) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	delete(s.ttls, token)
	return nil
}

// TTL reports the ttl a token was stored with
func (s *Sessions) TTL(token string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[token]
}
