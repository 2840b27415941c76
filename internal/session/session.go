// Package session keeps per-conversation history in process memory.
// Each session holds a bounded FIFO of question/answer exchanges; when the
// bound is exceeded the oldest exchange is dropped. History lives only for
// the lifetime of the process.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// DefaultMaxExchanges is the history bound applied when the caller passes 0.
const DefaultMaxExchanges = 2

// Exchange is one completed question/answer round.
type Exchange struct {
	// User is the user's query text.
	User string
	// Assistant is the generated answer text.
	Assistant string
}

// Store holds bounded conversation history keyed by session id.
// Safe for concurrent use; operations on distinct sessions do not block
// each other.
type Store struct {
	mu           sync.Mutex
	sessions     map[string]*history
	maxExchanges int
}

type history struct {
	mu        sync.Mutex
	exchanges []Exchange
}

// NewStore constructs a Store bounding each session to maxExchanges
// exchanges. Passing 0 applies DefaultMaxExchanges.
func NewStore(maxExchanges int) *Store {
	if maxExchanges <= 0 {
		maxExchanges = DefaultMaxExchanges
	}
	return &Store{
		sessions:     make(map[string]*history),
		maxExchanges: maxExchanges,
	}
}

// NewSessionID generates a fresh random session identifier.
func NewSessionID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("session: generating id: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// Append records one completed exchange for the session, evicting the
// oldest exchange when the bound is exceeded. An unknown session id is
// created implicitly.
func (s *Store) Append(sessionID string, ex Exchange) {
	h := s.session(sessionID)
	h.mu.Lock()
	defer h.mu.Unlock()

	h.exchanges = append(h.exchanges, ex)
	if len(h.exchanges) > s.maxExchanges {
		// Shift rather than reslice so the evicted head can be collected.
		copy(h.exchanges, h.exchanges[1:])
		h.exchanges = h.exchanges[:s.maxExchanges]
	}
}

// Recent returns the session's exchanges ordered oldest-first. The result
// is a copy; callers may retain it. Unknown sessions yield nil.
func (s *Store) Recent(sessionID string) []Exchange {
	s.mu.Lock()
	h, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.exchanges) == 0 {
		return nil
	}
	out := make([]Exchange, len(h.exchanges))
	copy(out, h.exchanges)
	return out
}

// Clear removes a session and its history.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// session returns the history bucket for the id, creating it if needed.
func (s *Store) session(sessionID string) *history {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[sessionID]
	if !ok {
		h = &history{}
		s.sessions[sessionID] = h
	}
	return h
}
