package store

import (
	"context"

	"picker-service/internal/models"
	apperrors "picker-service/pkg/errors"

	"github.com/jmoiron/sqlx"
)

// CreateAgent creates a new agent
func (r *queries) CreateAgent(ctx context.Context, a *models.Agent) error {
	query := `
		INSERT INTO agents (username, password_hash, full_name, email, phone, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	_, err := r.get(ctx, a, query, a.Username, a.PasswordHash, a.FullName, a.Email, a.Phone, a.Status)
	return translate(err)
}

// FindAgentByUsername looks an agent up by username
func (r *queries) FindAgentByUsername(ctx context.Context, username string) (*models.Agent, error) {
	var agent models.Agent
	found, err := r.get(ctx, &agent, "SELECT * FROM agents WHERE username = $1", username)
	if err != nil || !found {
		return nil, err
	}
	return &agent, nil
}

// GetAgent retrieves an agent by id
func (r *queries) GetAgent(ctx context.Context, id int64) (*models.Agent, error) {
	var agent models.Agent
	found, err := r.get(ctx, &agent, "SELECT * FROM agents WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("agent", id)
	}
	return &agent, nil
}

// ListAgents pages through agents
func (r *queries) ListAgents(ctx context.Context, limit, offset int) ([]models.Agent, error) {
	agents := []models.Agent{}
	err := sqlx.SelectContext(ctx, r.q, &agents,
		"SELECT * FROM agents ORDER BY id LIMIT $1 OFFSET $2", limitOrDefault(limit), offset)
	return agents, err
}
