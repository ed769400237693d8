package auth

import (
	"context"
	"errors"

	"github.com/yourname/babysleep/internal"
)

var ErrInvalidToken = errors.New("invalid token")

// LocalAuthProvider accepts a single configured token and maps it to a demo
// caregiver.
type LocalAuthProvider struct {
	Token  string
	logger internal.Logger
}

func (a *LocalAuthProvider) ValidateTokenLocal(token string) (*internal.Caregiver, error) {
	if token != "" && token == a.Token {
		return &internal.Caregiver{ID: "c1", Token: a.Token, Name: "Demo Caregiver"}, nil
	}
	a.logger.Warnf("auth: rejected local token")
	return nil, ErrInvalidToken
}

func (a *LocalAuthProvider) ValidateTokenRemote(ctx context.Context, token string) (*internal.Caregiver, error) {
	a.logger.Warnf("ValidateTokenRemote not implemented in LocalAuthProvider")
	return nil, errors.New("not implemented in LocalAuthProvider")
}

func NewLocalAuthProvider(token string, logger internal.Logger) *LocalAuthProvider {
	return &LocalAuthProvider{Token: token, logger: logger}
}
