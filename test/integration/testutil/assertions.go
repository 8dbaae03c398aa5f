//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
)

// DecodeJSON reads and decodes a JSON response body into dst.
func DecodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
}

// AssertStatus checks that the response has the expected HTTP status code.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertErrorCode checks that the response body contains the expected error code.
func AssertErrorCode(t *testing.T, resp *http.Response, expectedCode string) {
	t.Helper()
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	DecodeJSON(t, resp, &errResp)
	if errResp.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, errResp.Code, errResp.Message)
	}
}

// AssertBalanceInvariant checks players.balance against the sum of pending fines in SQL.
func AssertBalanceInvariant(t *testing.T, env *TestEnv, playerID uuid.UUID, want int64) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var stored, pending int64
	err := env.Pool.QueryRow(ctx, `
		SELECT p.balance::bigint,
		       COALESCE((SELECT SUM(amount) FROM fines f WHERE f.player_id = p.id AND f.status = 'pending'), 0)::bigint
		FROM players p WHERE p.id = $1`, playerID).Scan(&stored, &pending)
	if err != nil {
		t.Fatalf("AssertBalanceInvariant: query: %v", err)
	}
	if stored != pending {
		t.Errorf("balance drift: stored %d, pending total %d", stored, pending)
	}
	if stored != want {
		t.Errorf("balance: expected %d, got %d", want, stored)
	}
}

// CountRows returns the row count of table filtered by a WHERE clause.
func CountRows(t *testing.T, env *TestEnv, table, where string, args ...any) int {
	t.Helper()
	var n int
	if err := env.Pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table+" WHERE "+where, args...).Scan(&n); err != nil {
		t.Fatalf("CountRows(%s): %v", table, err)
	}
	return n
}
