package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"picker-service/internal/models"
	"picker-service/internal/redisclient"
	"picker-service/internal/store"
	"picker-service/internal/util"
	apperrors "picker-service/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes
const maxPasswordBytes = 72

// SessionStore keeps bearer tokens
type SessionStore interface {
	SetSession(ctx context.Context, token string, agentID int64, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (int64, error)
	DeleteSession(ctx context.Context, token string) error
}

// AgentService registers and authenticates picking agents
type AgentService struct {
	uow        store.UnitOfWork
	sessions   SessionStore
	sessionTTL time.Duration
	logger     *zap.Logger
}

// NewAgentService creates a new agent service
func NewAgentService(uow store.UnitOfWork, sessions SessionStore, sessionTTL time.Duration) *AgentService {
	return &AgentService{
		uow:        uow,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		logger:     util.Component("agents"),
	}
}

// RegisterRequest creates an agent
type RegisterRequest struct {
	Username string  `json:"username" binding:"required"`
	Password string  `json:"password" binding:"required"`
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
}

// LoginRequest exchanges credentials for a token
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the bearer token
type LoginResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int64         `json:"expires_in"`
	Agent       *models.Agent `json:"agent"`
}

func truncatePassword(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}

// Register creates an agent with a bcrypt password hash
func (s *AgentService) Register(ctx context.Context, req *RegisterRequest) (*models.Agent, error) {
	ctx, span := util.StartSpan(ctx, "AgentService.Register")
	defer span.End()

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, &apperrors.ErrValidation{
			Code:    apperrors.CodeMissingField,
			Message: "username and password are required",
		}
	}

	existing, err := s.uow.FindAgentByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &apperrors.ErrConflict{Message: fmt.Sprintf("username %s already registered", username)}
	}

	hash, err := bcrypt.GenerateFromPassword(truncatePassword(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	agent := &models.Agent{
		Username:     username,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		Status:       models.AgentActive,
	}
	if err := s.uow.CreateAgent(ctx, agent); err != nil {
		return nil, err
	}

	s.logger.Info("Agent registered", zap.Int64("agent_id", agent.ID), zap.String("username", username))
	return agent, nil
}

// Login verifies credentials and issues a bearer token
func (s *AgentService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	ctx, span := util.StartSpan(ctx, "AgentService.Login")
	defer span.End()

	invalid := &apperrors.ErrUnauthorized{Message: "invalid username or password"}

	agent, err := s.uow.FindAgentByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(agent.PasswordHash), truncatePassword(req.Password)); err != nil {
		return nil, invalid
	}
	if agent.Status != models.AgentActive {
		return nil, &apperrors.ErrUnauthorized{Message: "agent is not active"}
	}

	token := uuid.New().String()
	if err := s.sessions.SetSession(ctx, token, agent.ID, s.sessionTTL); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info("Agent logged in", zap.Int64("agent_id", agent.ID))
	return &LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.sessionTTL.Seconds()),
		Agent:       agent,
	}, nil
}

// Authenticate resolves a bearer token to an active agent
func (s *AgentService) Authenticate(ctx context.Context, token string) (*models.Agent, error) {
	if token == "" {
		return nil, &apperrors.ErrUnauthorized{Message: "missing bearer token"}
	}

	agentID, err := s.sessions.GetSession(ctx, token)
	if errors.Is(err, redisclient.ErrSessionNotFound) {
		return nil, &apperrors.ErrUnauthorized{Message: "invalid or expired token"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	agent, err := s.uow.GetAgent(ctx, agentID)
	if err != nil {
		var notFoundErr *apperrors.ErrNotFound
		if errors.As(err, &notFoundErr) {
			return nil, &apperrors.ErrUnauthorized{Message: "invalid or expired token"}
		}
		return nil, err
	}
	if agent.Status != models.AgentActive {
		return nil, &apperrors.ErrUnauthorized{Message: "agent is not active"}
	}
	return agent, nil
}

// Logout revokes a bearer token
func (s *AgentService) Logout(ctx context.Context, token string) error {
	return s.sessions.DeleteSession(ctx, token)
}

// GetAgent retrieves an agent by id
func (s *AgentService) GetAgent(ctx context.Context, id int64) (*models.Agent, error) {
	return s.uow.GetAgent(ctx, id)
}

// ListAgents pages through agents
func (s *AgentService) ListAgents(ctx context.Context, limit, offset int) ([]models.Agent, error) {
	return s.uow.ListAgents(ctx, limit, offset)
}
