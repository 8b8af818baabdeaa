package service

import (
	"context"
	"fmt"
	"strings"

	"mpesa-callback-relay/internal/core/ports"
	"mpesa-callback-relay/pkg/apperror"

	"github.com/rs/zerolog"
)

// AuthServiceImpl implements ports.AuthService.
//
// The relay keeps no credential store: a login names the merchant identity
// the desktop client wants to receive pushes for, and the token only proves
// the relay issued it.
type AuthServiceImpl struct {
	tokenSvc ports.TokenService
	log      zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(tokenSvc ports.TokenService, log zerolog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{tokenSvc: tokenSvc, log: log}
}

// Login issues a token whose merchant id is the trimmed username.
// The password is accepted but not checked.
func (s *AuthServiceImpl) Login(_ context.Context, username, _ string) (*ports.LoginResult, error) {
	merchantID := strings.TrimSpace(username)
	if merchantID == "" {
		return nil, apperror.ErrUsernameRequired()
	}

	token, expiry, err := s.tokenSvc.Generate(merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.log.Info().Str("merchant_id", merchantID).Msg("login token issued")

	return &ports.LoginResult{
		Token:      token,
		MerchantID: merchantID,
		ExpiresAt:  expiry,
	}, nil
}
