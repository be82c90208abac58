package repository

import (
	"context"
	"fmt"
	"time"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"
)

const (
	documentsTable    = "documents"
	DefaultMatchCount = 5
)

// KnowledgeRepository stores agent documents with their embeddings
type KnowledgeRepository struct {
	db *infrastructure.SupabaseClient
}

func NewKnowledgeRepository(db *infrastructure.SupabaseClient) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

func (r *KnowledgeRepository) Add(ctx context.Context, doc *entities.Document) (*entities.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := map[string]interface{}{
		"agent_id":  doc.AgentID,
		"content":   doc.Content,
		"embedding": doc.Embedding,
	}
	// pgvector comes back as a string literal, so the echoed embedding is not decoded
	var created []struct {
		ID        string    `json:"id"`
		AgentID   string    `json:"agent_id"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at"`
	}
	_, err := r.db.From(documentsTable).
		Insert(row, false, "", "representation", "").
		ExecuteTo(&created)
	if err != nil {
		return nil, upstream("add document", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("add document: no row returned: %w", entities.ErrUpstream)
	}
	return &entities.Document{
		ID:        created[0].ID,
		AgentID:   created[0].AgentID,
		Content:   created[0].Content,
		CreatedAt: created[0].CreatedAt,
	}, nil
}

// Search ranks the agent's documents by cosine similarity through match_documents
func (r *KnowledgeRepository) Search(ctx context.Context, agentID string, embedding []float32, matchCount int) ([]entities.DocumentMatch, error) {
	if matchCount <= 0 {
		matchCount = DefaultMatchCount
	}
	args := map[string]interface{}{
		"query_embedding": embedding,
		"match_count":     matchCount,
	}
	if agentID != "" {
		args["filter_agent_id"] = agentID
	}

	matches := []entities.DocumentMatch{}
	if err := r.db.Rpc(ctx, "match_documents", args, &matches); err != nil {
		return nil, classify("match documents", err)
	}
	return matches, nil
}
