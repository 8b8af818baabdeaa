package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"mpesa-callback-relay/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	svc := NewAuthService(tokenSvc, zerolog.Nop())

	expiry := time.Now().Add(time.Hour)
	tokenSvc.EXPECT().Generate("shop-a").Return("signed.jwt.token", expiry, nil)

	res, err := svc.Login(context.Background(), "  shop-a ", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "signed.jwt.token", res.Token)
	assert.Equal(t, "shop-a", res.MerchantID)
	assert.Equal(t, expiry, res.ExpiresAt)
}

func TestAuthService_Login_UsernameRequired(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	svc := NewAuthService(tokenSvc, zerolog.Nop())

	for _, username := range []string{"", "   "} {
		_, err := svc.Login(context.Background(), username, "pw")
		requireAppError(t, err, "AUTH_001", http.StatusBadRequest)
	}
}

func TestAuthService_Login_TokenError(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	svc := NewAuthService(tokenSvc, zerolog.Nop())

	tokenSvc.EXPECT().Generate("shop-a").Return("", time.Time{}, errors.New("boom"))

	_, err := svc.Login(context.Background(), "shop-a", "")
	requireAppError(t, err, "SYS_001", http.StatusInternalServerError)
}

func TestAuthService_WithRealTokens(t *testing.T) {
	tokens := NewJWTTokenService(testJWTSecret, time.Hour, "relay")
	svc := NewAuthService(tokens, zerolog.Nop())

	res, err := svc.Login(context.Background(), "5710325", "")
	require.NoError(t, err)

	claims, err := tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "5710325", claims.MerchantID)
}
