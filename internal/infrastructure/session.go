package infrastructure

import (
	"sync"
	"time"
)

// ChatSession tracks whether a reply is being generated for one chat
type ChatSession struct {
	Key          string
	IsProcessing bool
	LastActivity time.Time
	mu           sync.Mutex
}

// ChatGuard hands out one session per bot+chat so only one reply is in flight at a time
type ChatGuard struct {
	sessions map[string]*ChatSession
	mu       sync.RWMutex
}

func NewChatGuard() *ChatGuard {
	return &ChatGuard{
		sessions: make(map[string]*ChatSession),
	}
}

// GetOrCreateSession returns or creates the session for key
func (g *ChatGuard) GetOrCreateSession(key string) *ChatSession {
	g.mu.Lock()
	defer g.mu.Unlock()

	session, exists := g.sessions[key]
	if !exists {
		session = &ChatSession{Key: key}
		g.sessions[key] = session
	}
	return session
}

// TryAcquire marks the chat as processing. It returns false when a reply is already in flight.
func (g *ChatGuard) TryAcquire(key string) bool {
	return g.GetOrCreateSession(key).TryStart()
}

// Release marks the chat as done
func (g *ChatGuard) Release(key string) {
	g.mu.RLock()
	session, exists := g.sessions[key]
	g.mu.RUnlock()
	if exists {
		session.Finish()
	}
}

// Prune drops idle sessions older than maxAge
func (g *ChatGuard) Prune(maxAge time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for key, s := range g.sessions {
		s.mu.Lock()
		idle := !s.IsProcessing && time.Since(s.LastActivity) > maxAge
		s.mu.Unlock()
		if idle {
			delete(g.sessions, key)
			removed++
		}
	}
	return removed
}

func (s *ChatSession) TryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.IsProcessing {
		return false
	}
	s.IsProcessing = true
	s.LastActivity = time.Now()
	return true
}

func (s *ChatSession) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IsProcessing = false
	s.LastActivity = time.Now()
}
