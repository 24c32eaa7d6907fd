package provider

import "context"

// ChatProvider answers one query against a system prompt. Calls are stateless:
// no earlier turns are sent.
type ChatProvider interface {
	Model() string
	Reply(ctx context.Context, system, userInput string) (string, error)
}

// ModelInfo describes one model the configured key can use.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}
