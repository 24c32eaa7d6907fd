// Package chat drives one user session: it gates input on the knowledge base,
// calls the model and keeps the turn history.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nunajera/kbchat/internal"
	"github.com/nunajera/kbchat/internal/knowledge"
	"github.com/nunajera/kbchat/internal/prompt"
	"github.com/nunajera/kbchat/internal/provider"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNoKnowledge    = errors.New("knowledge base not loaded")
	ErrUploadDisabled = errors.New("upload is not enabled for this source")
	ErrReloadDisabled = errors.New("reload is not enabled for this source")
)

type State string

const (
	StateNoKnowledge State = "no_knowledge"
	StateReady       State = "ready"
)

// Options decide what a session may do with its knowledge base.
type Options struct {
	// OwnsKnowledge marks a session-private base that accepts uploads.
	OwnsKnowledge bool
	// Reloadable allows Reload on a shared base read from disk.
	Reloadable bool
}

// Session is the per-user context handed to every request handler.
type Session struct {
	ID string

	kb       *knowledge.Base
	provider provider.ChatProvider
	opts     Options

	mu      sync.Mutex // held across a whole submission
	history []internal.Message

	lastSeen atomic.Int64 // unix nanoseconds
	now      func() time.Time
}

func NewSession(id string, kb *knowledge.Base, p provider.ChatProvider, opts Options) *Session {
	s := &Session{
		ID:       id,
		kb:       kb,
		provider: p,
		opts:     opts,
		history:  make([]internal.Message, 0, 16),
		now:      time.Now,
	}
	s.Touch()
	return s
}

// Knowledge returns the snapshot the next submission would use.
func (s *Session) Knowledge(ctx context.Context) *knowledge.Snapshot {
	return s.kb.Current(ctx)
}

func (s *Session) State(ctx context.Context) State {
	if s.kb.Current(ctx).Ready() {
		return StateReady
	}
	return StateNoKnowledge
}

// Submit sends content to the model and appends the user turn followed by the
// assistant turn. A failed model call is answered with prompt.BusyReply; the
// returned error is only set when nothing was appended.
func (s *Session) Submit(ctx context.Context, content string) (internal.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return internal.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Touch()

	snap := s.kb.Current(ctx)
	if !snap.Ready() {
		return internal.Message{}, ErrNoKnowledge
	}

	userMsg := internal.Message{Role: internal.RoleUser, Content: content, CreatedAt: s.now()}

	answer, err := s.provider.Reply(ctx, snap.Prompt, content)
	if err != nil {
		logx.WithContext(ctx).Errorf("[chat] session %s: model %s failed: %v", s.ID, s.provider.Model(), err)
		answer = prompt.BusyReply
	}

	assistantMsg := internal.Message{Role: internal.RoleAssistant, Content: answer, CreatedAt: s.now()}
	s.history = append(s.history, userMsg, assistantMsg)
	return assistantMsg, nil
}

// History returns a copy of the turns so far.
func (s *Session) History() []internal.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]internal.Message, len(s.history))
	copy(cp, s.history)
	return cp
}

// Upload replaces the session's knowledge with the given document.
func (s *Session) Upload(name string, data []byte) (*knowledge.Snapshot, error) {
	if !s.opts.OwnsKnowledge {
		return nil, ErrUploadDisabled
	}
	s.Touch()
	return s.kb.Replace(name, data), nil
}

// Reload re-reads a disk-backed knowledge base.
func (s *Session) Reload(ctx context.Context) (*knowledge.Snapshot, error) {
	if !s.opts.Reloadable {
		return nil, ErrReloadDisabled
	}
	s.Touch()
	return s.kb.Reload(ctx), nil
}

func (s *Session) Options() Options { return s.opts }

func (s *Session) Touch() {
	s.lastSeen.Store(s.now().UnixNano())
}

// LastSeen is the time of the latest activity in the session.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}
