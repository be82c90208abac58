package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"
	"botrelay/internal/interfaces"
)

// Store groups the table repositories for one tenant project
type Store struct {
	db        *infrastructure.SupabaseClient
	agents    *AgentRepository
	bots      *BotRepository
	contacts  *ContactRepository
	messages  *MessageRepository
	knowledge *KnowledgeRepository
}

func NewStore(db *infrastructure.SupabaseClient) *Store {
	return &Store{
		db:        db,
		agents:    NewAgentRepository(db),
		bots:      NewBotRepository(db),
		contacts:  NewContactRepository(db),
		messages:  NewMessageRepository(db),
		knowledge: NewKnowledgeRepository(db),
	}
}

func (s *Store) Agents() interfaces.AgentRepository { return s.agents }
func (s *Store) Bots() interfaces.BotRepository { return s.bots }
func (s *Store) Contacts() interfaces.ContactRepository { return s.contacts }
func (s *Store) Messages() interfaces.MessageRepository { return s.messages }
func (s *Store) Knowledge() interfaces.KnowledgeRepository { return s.knowledge }

func (s *Store) Credentials() entities.Credentials {
	return s.db.Credentials()
}

func (s *Store) Probe(ctx context.Context) (bool, error) {
	return s.db.Probe(ctx)
}

// Count returns the exact row count of a table
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	_, count, err := s.db.From(table).Select("id", "exact", true).Execute()
	infrastructure.ObserveUpstream("supabase", err)
	if err != nil {
		return 0, classify("count "+table, err)
	}
	return count, nil
}

// ExecSQL runs a statement through the exec_sql database function
func (s *Store) ExecSQL(ctx context.Context, query string) (*entities.SQLResult, error) {
	rows := []map[string]interface{}{}
	if err := s.db.Rpc(ctx, "exec_sql", map[string]string{"query": query}, &rows); err != nil {
		return nil, classify("exec sql", err)
	}
	return &entities.SQLResult{
		Rows:     rows,
		RowCount: int64(len(rows)),
		Command:  commandOf(query),
	}, nil
}

// commandOf returns the leading keyword of a statement, upper-cased
func commandOf(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(strings.TrimSuffix(fields[0], ";"))
}

func deleteByID(db *infrastructure.SupabaseClient, table, id string) (bool, error) {
	var removed []map[string]interface{}
	_, err := db.From(table).
		Delete("representation", "").
		Eq("id", id).
		ExecuteTo(&removed)
	infrastructure.ObserveUpstream("supabase", err)
	if err != nil {
		if isInvalidID(err) {
			return false, nil
		}
		return false, classify("delete from "+table, err)
	}
	return len(removed) > 0, nil
}

func withUpdatedAt(patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(patch)+1)
	for k, v := range patch {
		out[k] = v
	}
	out["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	return out
}

func upstream(op string, err error) error {
	infrastructure.ObserveUpstream("supabase", err)
	return classify(op, err)
}

// classify wraps err, marking rejected keys and row-level denials as ErrUnauthorized
func classify(op string, err error) error {
	if infrastructure.IsPermissionDenied(err) {
		return fmt.Errorf("%s: %v: %w", op, err, entities.ErrUnauthorized)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// lookupError turns a malformed id into ErrNotFound
func lookupError(op string, err error) error {
	if isInvalidID(err) {
		return entities.ErrNotFound
	}
	return upstream(op, err)
}

// isInvalidID matches "invalid input syntax for type uuid" (22P02)
func isInvalidID(err error) bool {
	return err != nil && strings.Contains(err.Error(), "22P02")
}
