package completion

import (
	"context"
	"time"
)

// Provider is one versioned completion-service configuration.
type Provider struct {
	Name    string        `json:"name"`
	Version int           `json:"version"`
	BaseURL string        `json:"base_url"`
	Model   string        `json:"model"`
	APIKey  string        `json:"-"`
	Timeout time.Duration `json:"timeout"`
}

// ProviderSource returns the currently active provider, or nil when none is
// configured durably.
type ProviderSource interface {
	ActiveProvider(ctx context.Context) (*Provider, error)
}
