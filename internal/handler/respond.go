package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/teamfines/platform/internal/auth"
	"github.com/teamfines/platform/internal/domain"
)

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// RespondError writes a JSON error response, detecting domain.AppError for status codes.
// Causes are never serialized.
func RespondError(w http.ResponseWriter, err error) {
	if appErr, ok := domain.AsAppError(err); ok {
		RespondJSON(w, appErr.Status, map[string]string{
			"code":    appErr.Code,
			"message": appErr.Message,
		})
		return
	}
	RespondJSON(w, http.StatusInternalServerError, map[string]string{
		"code":    "INTERNAL_ERROR",
		"message": "internal server error",
	})
}

const maxBodyBytes = 1 << 20

// DecodeJSON reads and decodes a JSON request body into dst. Bodies over 1 MiB are rejected.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return domain.ErrValidation("invalid request body: " + err.Error())
	}
	return nil
}

func actorFrom(r *http.Request) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		return domain.Actor{}, domain.ErrUnauthorized("no auth context")
	}
	return actor, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domain.ErrValidation("invalid " + name)
	}
	return id, nil
}

func boolQuery(r *http.Request, name string) (bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, domain.ErrValidation("invalid " + name + " query parameter")
	}
	return b, nil
}

// resolveAmount accepts either minor units or a major-unit decimal string, not both.
func resolveAmount(minor *int64, major string) (int64, error) {
	switch {
	case minor != nil && major != "":
		return 0, domain.ErrValidation("set either amount or amount_major, not both")
	case minor != nil:
		return *minor, nil
	case major != "":
		return domain.ParseAmount(major)
	}
	return 0, nil
}
