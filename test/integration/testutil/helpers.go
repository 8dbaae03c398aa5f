//go:build integration

package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/teamfines/platform/internal/auth"
)

// Token mints a bearer token for user in org with role.
func (env *TestEnv) Token(userID, orgID, role string) string {
	env.t.Helper()
	token, err := env.JWTMgr.GenerateToken(userID, orgID, role)
	if err != nil {
		env.t.Fatalf("Token: %v", err)
	}
	return token
}

// CoachToken returns an owner token for org.
func (env *TestEnv) CoachToken(orgID string) string {
	return env.Token("coach-"+orgID, orgID, auth.RoleOwner)
}

// CreatePlayer creates a player through the API and returns its ID.
func (env *TestEnv) CreatePlayer(token, name string) uuid.UUID {
	env.t.Helper()
	resp := env.POST("/v1/players", map[string]any{"name": name}, token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("CreatePlayer: expected 201, got %d", resp.StatusCode)
	}
	var out struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		env.t.Fatalf("CreatePlayer: decode: %v", err)
	}
	return out.ID
}

// IssueFine issues an ad hoc fine and returns its ID.
func (env *TestEnv) IssueFine(token string, playerID uuid.UUID, amount int64, reason string) uuid.UUID {
	env.t.Helper()
	resp := env.POST("/v1/fines", map[string]any{
		"player_id": playerID,
		"amount":    amount,
		"reason":    reason,
	}, token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("IssueFine: expected 201, got %d", resp.StatusCode)
	}
	var out struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		env.t.Fatalf("IssueFine: decode: %v", err)
	}
	return out.ID
}

// GET sends an unauthenticated GET.
func (env *TestEnv) GET(path string) *http.Response {
	return env.do(http.MethodGet, path, nil, "")
}

// AuthGET sends a GET with a bearer token.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	return env.do(http.MethodGet, path, nil, token)
}

// POST sends a JSON POST; token may be empty.
func (env *TestEnv) POST(path string, body any, token string) *http.Response {
	return env.do(http.MethodPost, path, body, token)
}

// PATCH sends a JSON PATCH.
func (env *TestEnv) PATCH(path string, body any, token string) *http.Response {
	return env.do(http.MethodPatch, path, body, token)
}

func (env *TestEnv) do(method, path string, body any, token string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}
