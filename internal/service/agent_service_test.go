package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"picker-service/internal/models"
	"picker-service/internal/store/storetest"
	apperrors "picker-service/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAgentService() (*AgentService, *storetest.Store, *storetest.Sessions) {
	st := storetest.New()
	sessions := storetest.NewSessions()
	return NewAgentService(st, sessions, 8*time.Hour), st, sessions
}

func TestAgentService_RegisterAndLogin(t *testing.T) {
	svc, _, sessions := newAgentService()
	ctx := context.Background()

	agent, err := svc.Register(ctx, &RegisterRequest{Username: " picker1 ", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "picker1", agent.Username)
	assert.Equal(t, models.AgentActive, agent.Status)
	assert.NotEqual(t, "s3cret", agent.PasswordHash)

	resp, err := svc.Login(ctx, &LoginRequest{Username: "picker1", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, int64(8*3600), resp.ExpiresIn)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, 8*time.Hour, sessions.TTL(resp.AccessToken))

	authed, err := svc.Authenticate(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, authed.ID)

	require.NoError(t, svc.Logout(ctx, resp.AccessToken))
	_, err = svc.Authenticate(ctx, resp.AccessToken)
	var unauthorized *apperrors.ErrUnauthorized
	assert.True(t, errors.As(err, &unauthorized))
}

func TestAgentService_RegisterRejects(t *testing.T) {
	svc, _, _ := newAgentService()
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{Username: "  ", Password: "x"})
	var validation *apperrors.ErrValidation
	assert.True(t, errors.As(err, &validation))

	_, err = svc.Register(ctx, &RegisterRequest{Username: "dup", Password: "x"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, &RegisterRequest{Username: "dup", Password: "y"})
	var conflict *apperrors.ErrConflict
	assert.True(t, errors.As(err, &conflict))
}

func TestAgentService_LongPasswordsAreTruncated(t *testing.T) {
	svc, _, _ := newAgentService()
	ctx := context.Background()
	long := strings.Repeat("p", 100)

	_, err := svc.Register(ctx, &RegisterRequest{Username: "long", Password: long})
	require.NoError(t, err)

	_, err = svc.Login(ctx, &LoginRequest{Username: "long", Password: long[:72]})
	assert.NoError(t, err)
}

func TestAgentService_LoginFailures(t *testing.T) {
	svc, st, _ := newAgentService()
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{Username: "ana", Password: "right"})
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, st.CreateAgent(ctx, &models.Agent{Username: "gone", PasswordHash: string(hash), Status: "INACTIVE"}))

	tests := []struct {
		name     string
		req      LoginRequest
		contains string
	}{
		{"wrong password", LoginRequest{Username: "ana", Password: "wrong"}, "invalid username or password"},
		{"unknown user", LoginRequest{Username: "bob", Password: "right"}, "invalid username or password"},
		{"inactive agent", LoginRequest{Username: "gone", Password: "pw"}, "not active"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, &tt.req)
			var unauthorized *apperrors.ErrUnauthorized
			require.True(t, errors.As(err, &unauthorized))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestAgentService_AuthenticateUnknownToken(t *testing.T) {
	svc, _, sessions := newAgentService()
	ctx := context.Background()
	var unauthorized *apperrors.ErrUnauthorized

	_, err := svc.Authenticate(ctx, "")
	assert.True(t, errors.As(err, &unauthorized))

	_, err = svc.Authenticate(ctx, "no-such-token")
	assert.True(t, errors.As(err, &unauthorized))

	require.NoError(t, sessions.SetSession(ctx, "orphan", 12345, time.Hour))
	_, err = svc.Authenticate(ctx, "orphan")
	assert.True(t, errors.As(err, &unauthorized))
}
