package forge

import (
	"context"

	"reviewgate/internal/model"
)

// Forge abstracts the commit status calls of a source hosting service.
type Forge interface {
	Kind() string // "github"
	// CombinedStatus returns every status posted against the target commit.
	CombinedStatus(ctx context.Context, t model.Target) ([]model.Status, error)
	// CreateStatus posts a new status for the target commit and context.
	CreateStatus(ctx context.Context, t model.Target, u model.StatusUpdate) error
}

// Opener returns a Forge authenticated with token.
type Opener func(token string) (Forge, error)

// FindContext returns the status posted for context, or the default empty
// status when the context has none.
func FindContext(statuses []model.Status, context string) model.Status {
	for _, s := range statuses {
		if s.Context == context {
			return s
		}
	}
	return model.Status{Context: context, State: model.StateNone}
}
