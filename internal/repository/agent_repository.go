package repository

import (
	"context"
	"fmt"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"

	"github.com/supabase-community/postgrest-go"
)

const agentsTable = "agents"

type AgentRepository struct {
	db *infrastructure.SupabaseClient
}

func NewAgentRepository(db *infrastructure.SupabaseClient) *AgentRepository {
	return &AgentRepository{db: db}
}

func (r *AgentRepository) List(ctx context.Context) ([]entities.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	agents := []entities.Agent{}
	_, err := r.db.From(agentsTable).
		Select("*", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&agents)
	if err != nil {
		return nil, upstream("list agents", err)
	}
	return agents, nil
}

func (r *AgentRepository) Get(ctx context.Context, id string) (*entities.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var agents []entities.Agent
	_, err := r.db.From(agentsTable).
		Select("*", "", false).
		Eq("id", id).
		Limit(1, "").
		ExecuteTo(&agents)
	if err != nil {
		return nil, lookupError("get agent", err)
	}
	if len(agents) == 0 {
		return nil, entities.ErrNotFound
	}
	return &agents[0], nil
}

func (r *AgentRepository) Create(ctx context.Context, agent *entities.Agent) (*entities.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := map[string]interface{}{
		"name":          agent.Name,
		"description":   agent.Description,
		"system_prompt": agent.SystemPrompt,
		"model":         agent.Model,
		"temperature":   agent.Temperature,
		"is_active":     agent.IsActive,
	}
	var created []entities.Agent
	_, err := r.db.From(agentsTable).
		Insert(row, false, "", "representation", "").
		ExecuteTo(&created)
	if err != nil {
		return nil, upstream("create agent", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("create agent: no row returned: %w", entities.ErrUpstream)
	}
	return &created[0], nil
}

func (r *AgentRepository) Update(ctx context.Context, id string, patch map[string]interface{}) (*entities.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	patch = withUpdatedAt(patch)
	var updated []entities.Agent
	_, err := r.db.From(agentsTable).
		Update(patch, "representation", "").
		Eq("id", id).
		ExecuteTo(&updated)
	if err != nil {
		return nil, lookupError("update agent", err)
	}
	if len(updated) == 0 {
		return nil, entities.ErrNotFound
	}
	return &updated[0], nil
}

func (r *AgentRepository) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return deleteByID(r.db, agentsTable, id)
}
