package config

import (
	"fmt"

	postgrest "github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

// NewPostgrestClient builds a PostgREST client for the row stores. The
// service key goes in both the apikey header and the bearer token, same as
// any server-side Supabase consumer.
func NewPostgrestClient(cfg *Config) (*postgrest.Client, error) {
	client := postgrest.NewClient(cfg.SupabaseURL+"/rest/v1", "", map[string]string{
		"apikey":        cfg.SupabaseServiceKey,
		"Authorization": fmt.Sprintf("Bearer %s", cfg.SupabaseServiceKey),
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("failed to initialize postgrest client: %w", client.ClientError)
	}
	return client, nil
}

// NewSupabaseClient builds the full Supabase client, used for storage bucket
// access.
func NewSupabaseClient(cfg *Config) (*supa.Client, error) {
	client, err := supa.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize supabase client: %w", err)
	}
	return client, nil
}
