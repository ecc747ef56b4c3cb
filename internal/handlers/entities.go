package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"repmarket/internal/core"
)

func (h *Handler) CreateEntityHandler(w http.ResponseWriter, r *http.Request) {
	// Ограничение размера тела, чтобы избежать DoS
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	owner := userID(r)
	if owner == "" {
		http.Error(w, "Missing userId parameter", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var input core.EntityInput
	if err := json.Unmarshal(body, &input); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	entity, err := h.Svc.Entities.Create(r.Context(), owner, input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(entity)
}

func (h *Handler) GetUserEntitiesHandler(w http.ResponseWriter, r *http.Request) {
	owner := userID(r)
	if owner == "" {
		http.Error(w, "Missing userId parameter", http.StatusBadRequest)
		return
	}

	entities, err := h.Svc.Entities.List(r.Context(), owner)
	if err != nil {
		http.Error(w, "Failed to get entities", http.StatusInternalServerError)
		return
	}
	writeJSON(w, entities)
}

func (h *Handler) EditEntityHandler(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityId")
	owner := userID(r)
	if entityID == "" || owner == "" {
		http.Error(w, "Missing entityId or userId", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Cannot read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var input core.EntityUpdate
	if err := json.Unmarshal(body, &input); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	entity, err := h.Svc.Entities.Update(r.Context(), owner, entityID, input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, entity)
}

func (h *Handler) SetDefaultEntityHandler(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityId")
	owner := userID(r)
	if entityID == "" || owner == "" {
		http.Error(w, "Missing entityId or userId", http.StatusBadRequest)
		return
	}

	entity, err := h.Svc.Entities.SetDefault(r.Context(), owner, entityID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, entity)
}

func (h *Handler) DeleteEntityHandler(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityId")
	owner := userID(r)
	if entityID == "" || owner == "" {
		http.Error(w, "Missing entityId or userId", http.StatusBadRequest)
		return
	}

	if err := h.Svc.Entities.Delete(r.Context(), owner, entityID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
