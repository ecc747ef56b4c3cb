package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"repmarket/internal/common"
	"repmarket/internal/core"
)

// Handler wraps the core services for the HTTP surface. Identity arrives as
// an already-verified userId query parameter from the upstream gateway; the
// core performs ownership checks, not authentication.
type Handler struct {
	Svc *core.Service
}

func NewHandler(svc *core.Service) *Handler {
	return &Handler{Svc: svc}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) PaginationParams {
	var params PaginationParams
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	params.Limit = 5 // дефолт
	params.Offset = 0

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 50 {
			params.Limit = l
		}
	}
	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

// userID extracts the verified caller id. Empty means the gateway did not
// attach one and the request cannot be attributed.
func userID(r *http.Request) string {
	return r.URL.Query().Get("userId")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeDomainError maps the core error kinds onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		validation *common.ValidationError
		notFound   *common.NotFoundError
		transition *common.InvalidStateTransition
		invariant  *common.InvariantViolation
		expired    *common.ExpiredError
	)
	switch {
	case errors.As(err, &validation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &transition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &invariant):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &expired):
		http.Error(w, err.Error(), http.StatusGone)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
