package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"botrelay/internal/entities"

	"github.com/supabase-community/postgrest-go"
)

// SupabaseClient talks to one hosted project's PostgREST endpoint with a single key.
type SupabaseClient struct {
	creds   entities.Credentials
	restURL string
	headers map[string]string
	rest    *postgrest.Client
}

// NewSupabaseClient builds a REST client for the project in creds
func NewSupabaseClient(creds entities.Credentials) *SupabaseClient {
	restURL := strings.TrimRight(creds.URL, "/") + "/rest/v1"
	headers := map[string]string{
		"apikey":        creds.Key,
		"Authorization": "Bearer " + creds.Key,
	}
	return &SupabaseClient{
		creds:   creds,
		restURL: restURL,
		headers: headers,
		rest:    postgrest.NewClient(restURL, "public", headers),
	}
}

func (s *SupabaseClient) Credentials() entities.Credentials {
	return s.creds
}

// From starts a query against a table
func (s *SupabaseClient) From(table string) *postgrest.QueryBuilder {
	return s.rest.From(table)
}

type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint"`
	Details string `json:"details"`
}

// Rpc calls a Postgres function and decodes its JSON result into out.
// A fresh client is used per call because the library reports rpc errors on a shared field.
func (s *SupabaseClient) Rpc(ctx context.Context, fn string, args interface{}, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client := postgrest.NewClient(s.restURL, "public", s.headers)
	body := client.Rpc(fn, "", args)
	if client.ClientError != nil {
		ObserveUpstream("supabase", client.ClientError)
		return fmt.Errorf("rpc %s: %w", fn, client.ClientError)
	}

	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") {
		var pgErr postgrestError
		if json.Unmarshal([]byte(trimmed), &pgErr) == nil && pgErr.Code != "" && pgErr.Message != "" {
			err := fmt.Errorf("rpc %s: (%s) %s", fn, pgErr.Code, pgErr.Message)
			ObserveUpstream("supabase", err)
			return err
		}
	}
	ObserveUpstream("supabase", nil)

	if out == nil || trimmed == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		return fmt.Errorf("decode rpc %s result: %w", fn, err)
	}
	return nil
}

// Probe checks that the project answers with the configured key.
// schemaReady is false when the project is reachable but the agents table does not exist yet.
func (s *SupabaseClient) Probe(ctx context.Context) (schemaReady bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, _, err = s.rest.From("agents").Select("id", "", false).Limit(1, "").Execute()
	ObserveUpstream("supabase", err)
	if err == nil {
		return true, nil
	}
	if IsMissingRelation(err) {
		return false, nil
	}
	return false, err
}

// IsPermissionDenied matches a missing grant (42501) or a rejected JWT (PGRST301, PGRST302)
func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, code := range []string{"42501", "PGRST301", "PGRST302"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// IsMissingRelation reports a PostgREST "table does not exist" error.
func IsMissingRelation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "42P01") || strings.Contains(msg, "PGRST205")
}
