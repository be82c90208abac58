package repository

import (
	"context"
	"fmt"
	"strings"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"

	"github.com/google/uuid"
)

// SQLRunner executes raw statements on the direct Postgres connection
type SQLRunner struct {
	pg *infrastructure.PostgresClient
}

func NewSQLRunner(pg *infrastructure.PostgresClient) *SQLRunner {
	return &SQLRunner{pg: pg}
}

// Run executes one statement. Result columns are unknown up front, so rows are
// read through FieldDescriptions into maps.
func (s *SQLRunner) Run(ctx context.Context, query string) (*entities.SQLResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", entities.ErrInvalidInput)
	}

	rows, err := s.pg.Pool.Query(ctx, query)
	if err != nil {
		infrastructure.ObserveUpstream("postgres", err)
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		rowMap := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			rowMap[fd.Name] = jsonValue(values[i])
		}
		results = append(results, rowMap)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		infrastructure.ObserveUpstream("postgres", err)
		return nil, fmt.Errorf("query failed: %w", err)
	}
	infrastructure.ObserveUpstream("postgres", nil)

	tag := rows.CommandTag()
	count := tag.RowsAffected()
	if len(results) > 0 {
		count = int64(len(results))
	}
	command := commandOf(tag.String())
	if command == "" {
		command = commandOf(query)
	}

	return &entities.SQLResult{
		Rows:     results,
		RowCount: count,
		Command:  command,
	}, nil
}

func (s *SQLRunner) ApplySchema(ctx context.Context, dims int) error {
	return s.pg.ApplySchema(ctx, dims)
}

// jsonValue converts driver values that do not encode well as JSON
func jsonValue(v interface{}) interface{} {
	switch t := v.(type) {
	case [16]byte:
		return uuid.UUID(t).String()
	case []byte:
		return string(t)
	default:
		return v
	}
}
