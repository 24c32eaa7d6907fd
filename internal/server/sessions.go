package server

import (
	"github.com/nunajera/kbchat/internal/chat"
	"github.com/nunajera/kbchat/internal/config"
	"github.com/nunajera/kbchat/internal/knowledge"
	"github.com/nunajera/kbchat/internal/prompt"
	"github.com/nunajera/kbchat/internal/provider"
	"github.com/nunajera/kbchat/internal/store"
)

// NewSessionStore wires the knowledge source selected by cfg into new sessions.
// Inline and autoload sessions share one process-wide base, which is returned so
// the caller can watch it; upload sessions each own a base and nil is returned.
func NewSessionStore(cfg config.Config, p provider.ChatProvider) (*store.MemoryStore, *knowledge.Base) {
	switch cfg.Knowledge.Source {
	case config.SourceUpload:
		return store.NewMemoryStore(func(id string) *chat.Session {
			kb := knowledge.NewBase(knowledge.EmptySource{}, prompt.Build)
			return chat.NewSession(id, kb, p, chat.Options{OwnsKnowledge: true})
		}), nil

	case config.SourceAutoload:
		shared := knowledge.NewBase(knowledge.DirSource{Dir: cfg.Knowledge.Dir}, prompt.Build)
		return store.NewMemoryStore(func(id string) *chat.Session {
			return chat.NewSession(id, shared, p, chat.Options{Reloadable: true})
		}), shared

	default:
		text := cfg.Knowledge.Inline
		if text == "" {
			text = prompt.DefaultKnowledge
		}
		shared := knowledge.NewBase(knowledge.InlineSource{Text: text}, prompt.Build)
		return store.NewMemoryStore(func(id string) *chat.Session {
			return chat.NewSession(id, shared, p, chat.Options{})
		}), shared
	}
}
