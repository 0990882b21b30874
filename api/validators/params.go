package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
)

func invalidParam(name, msg string, extra map[string]any) *pkgerrors.Error {
	details := map[string]any{"field": name}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, name+" "+msg).WithDetails(details)
}

// ParseQueryInt reads an optional integer query parameter bounded by [min, max].
func ParseQueryInt(r *http.Request, name string, fallback, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(name, "must be an integer", nil)
	}
	if n < min || n > max {
		return 0, invalidParam(name, "out of range", map[string]any{"min": min, "max": max})
	}
	return n, nil
}

// ParseQueryBool reads an optional boolean query parameter ("true", "1", ...).
func ParseQueryBool(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidParam(name, "must be a boolean", nil)
	}
	return v, nil
}

// PathString reads a required chi route parameter such as {reference}.
func PathString(r *http.Request, name string) (string, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return "", invalidParam(name, "is required", nil)
	}
	return raw, nil
}

// PathUUID reads a required chi route parameter such as {orderId} as a UUID.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw, err := PathString(r, name)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalidParam(name, "must be a valid uuid", nil)
	}
	return id, nil
}
