package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nunajera/kbchat/internal/chat"
)

// Factory builds a fresh session for a new ID.
type Factory func(id string) *chat.Session

// MemoryStore keeps live sessions in memory. Nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Session
	factory  Factory
}

func NewMemoryStore(factory Factory) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*chat.Session),
		factory:  factory,
	}
}

func (s *MemoryStore) Get(id string) (*chat.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Create starts a session under a new random ID.
func (s *MemoryStore) Create() *chat.Session {
	sess := s.factory(uuid.NewString())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess
}

// Delete ends a session; its history is gone with it.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ClearExpired drops sessions idle for longer than maxAge and returns how many.
func (s *MemoryStore) ClearExpired(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	n := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeen()) > maxAge {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// RunJanitor calls ClearExpired every interval until ctx ends.
func (s *MemoryStore) RunJanitor(ctx context.Context, every, maxAge time.Duration) {
	if every <= 0 || maxAge <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.ClearExpired(maxAge); n > 0 {
				logx.Infof("[session] expired %d session(s), %d live", n, s.Len())
			}
		}
	}
}
