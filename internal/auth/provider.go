package auth

import (
	"context"

	"github.com/yourname/babysleep/internal"
)

type Provider interface {
	ValidateTokenLocal(token string) (*internal.Caregiver, error)
	ValidateTokenRemote(ctx context.Context, token string) (*internal.Caregiver, error)
}

// NewProvider returns the local provider in development and the remote one
// everywhere else.
func NewProvider(env, token, serviceURL string, logger internal.Logger) Provider {
	if env == "development" {
		return NewLocalAuthProvider(token, logger)
	}
	return NewRemoteAuthProvider(serviceURL, logger)
}
