package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"invest-desk/observability"

	"github.com/google/uuid"
)

// SupabaseAuthenticator validates access tokens against a Supabase project
type SupabaseAuthenticator struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewSupabaseAuthenticator creates a SupabaseAuthenticator
func NewSupabaseAuthenticator(baseURL, anonKey string) *SupabaseAuthenticator {
	return &SupabaseAuthenticator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type supabaseUser struct {
	ID string `json:"id"`
}

// Authenticate resolves token to the user's id
func (a *SupabaseAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrUnauthorized
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerSupabase, "get_user")
	timer := metrics.NewTimer()

	userID, err := WithCircuitBreaker(ctx, BreakerSupabase, func() (string, error) {
		return a.fetchUser(ctx, token)
	})

	timer.ObserveExternalAPI(BreakerSupabase, "get_user")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerSupabase, "get_user", categorizeAPIError(err))
		return "", err
	}
	return userID, nil
}

func (a *SupabaseAuthenticator) fetchUser(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if a.anonKey != "" {
		req.Header.Set("apikey", a.anonKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach auth provider: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("auth provider: status %d", resp.StatusCode)
	}

	var user supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("failed to decode auth user: %w", err)
	}
	id, err := uuid.Parse(user.ID)
	if err != nil {
		return "", fmt.Errorf("%w: malformed user id", ErrUnauthorized)
	}
	return id.String(), nil
}
