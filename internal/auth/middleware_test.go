package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actorEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(actor.OrganizationID + "/" + actor.UserID))
	})
}

func TestAuthenticate(t *testing.T) {
	mgr := newTestJWTManager()
	valid, err := mgr.GenerateToken("coach1", "org_1", RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid bearer", "Bearer " + valid, http.StatusOK, "org_1/coach1"},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, "org_1/coach1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer nope", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Authenticate(mgr)(actorEcho(t)).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	mgr := newTestJWTManager()
	chain := func(h http.Handler) http.Handler {
		return Authenticate(mgr)(RequireRole(WriteRoles()...)(h))
	}

	tests := []struct {
		role       string
		wantStatus int
	}{
		{RoleOwner, http.StatusOK},
		{RoleAdmin, http.StatusOK},
		{RoleMember, http.StatusForbidden},
		{"", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run("role "+tt.role, func(t *testing.T) {
			token, err := mgr.GenerateToken("coach1", "org_1", tt.role)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			chain(actorEcho(t)).ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	t.Run("no actor in context", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireRole(RoleOwner)(actorEcho(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
