package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"repmarket/models"
)

// GetUserAssignmentsHandler возвращает назначения представителя. Statuses are
// projected against the current time before the optional filter applies.
func (h *Handler) GetUserAssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	rep := userID(r)
	if rep == "" {
		http.Error(w, "Missing userId parameter", http.StatusBadRequest)
		return
	}
	status := r.URL.Query().Get("status")

	assignments, err := h.Svc.Assignments.ListRepAssignments(r.Context(), rep, status, params.Limit, params.Offset)
	if err != nil {
		http.Error(w, "Failed to get assignments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, assignments)
}

func (h *Handler) GetAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignmentId")
	caller := userID(r)
	if assignmentID == "" || caller == "" {
		http.Error(w, "Missing assignmentId or userId", http.StatusBadRequest)
		return
	}

	assignment, err := h.Svc.Assignments.Get(r.Context(), caller, assignmentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, assignment)
}

// CompleteAssignmentHandler takes the completion report, closes the
// assignment and moves the job to completed.
func (h *Handler) CompleteAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	assignmentID := chi.URLParam(r, "assignmentId")
	rep := userID(r)
	if assignmentID == "" || rep == "" {
		http.Error(w, "Missing assignmentId or userId", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var report models.CompletionReport
	if err := json.Unmarshal(body, &report); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	assignment, err := h.Svc.Assignments.SubmitCompletionReport(r.Context(), rep, assignmentID, report)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, assignment)
}
