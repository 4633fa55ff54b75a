package redis

import (
	"context"
	"log"
	"sync"
	"time"

	"reading-adventure-service/internal/app"

	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions live in a local map; the quiz state itself never leaves the process.
//   - Redis holds a liveness marker per session (story:session:{id} -> profileID)
//     with an idle TTL refreshed on every Get. A session whose marker is gone is
//     dropped, and idle entries are swept from the local map on Put.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time

	mu        sync.Mutex
	sessions  map[string]sessionEntry
	lastSweep time.Time
}

type sessionEntry struct {
	session  *app.QuizSession
	lastSeen time.Time
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]sessionEntry),
	}
}

func (s *SessionStore) Put(session *app.QuizSession) {
	now := s.clock()
	s.mu.Lock()
	s.sweepLocked(now)
	s.sessions[session.ID()] = sessionEntry{session: session, lastSeen: now}
	s.mu.Unlock()
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(session.ID()), session.ProfileID(), s.ttl).Err()
}

func (s *SessionStore) Get(sessionID string) (*app.QuizSession, bool) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	if !s.alive(sessionID) {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return nil, false
	}

	s.mu.Lock()
	if current, ok := s.sessions[sessionID]; ok && current.session == entry.session {
		current.lastSeen = s.clock()
		s.sessions[sessionID] = current
	}
	s.mu.Unlock()
	return entry.session, true
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return
	}
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

// alive refreshes the marker and reports whether it still exists.
// Redis errors keep the session.
func (s *SessionStore) alive(sessionID string) bool {
	ctx := context.Background()
	if s.ttl > 0 {
		refreshed, err := s.client.Expire(ctx, s.key(sessionID), s.ttl).Result()
		if err != nil {
			log.Printf("refresh session %s: %v", sessionID, err)
			return true
		}
		return refreshed
	}
	n, err := s.client.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		log.Printf("check session %s: %v", sessionID, err)
		return true
	}
	return n == 1
}

// sweepLocked drops entries idle past the TTL; their markers have expired too.
func (s *SessionStore) sweepLocked(now time.Time) {
	if s.ttl <= 0 || now.Sub(s.lastSweep) < s.ttl {
		return
	}
	s.lastSweep = now
	for id, entry := range s.sessions {
		if now.Sub(entry.lastSeen) > s.ttl {
			delete(s.sessions, id)
		}
	}
}

func (s *SessionStore) key(sessionID string) string {
	return "story:session:" + sessionID
}
