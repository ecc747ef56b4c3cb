package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"repmarket/internal/core"
	"repmarket/models"
)

func (h *Handler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	client := userID(r)
	if client == "" {
		http.Error(w, "Missing userId parameter", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var input core.JobInput
	if err := json.Unmarshal(body, &input); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	job, err := h.Svc.Jobs.Post(r.Context(), client, input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(job)
}

// GetUserJobsHandler возвращает задания клиента, опционально по статусу
func (h *Handler) GetUserJobsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	client := userID(r)
	if client == "" {
		http.Error(w, "Missing userId parameter", http.StatusBadRequest)
		return
	}
	status := r.URL.Query().Get("status")

	jobs, err := h.Svc.Jobs.ListClientJobs(r.Context(), client, status, params.Limit, params.Offset)
	if err != nil {
		http.Error(w, "Failed to get user jobs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, jobs)
}

// GetOpenJobsHandler is the marketplace view representatives browse.
func (h *Handler) GetOpenJobsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	// Фильтр meeting_type - может быть несколько через query param
	meetingTypes := r.URL.Query()["meeting_type"]
	for _, v := range meetingTypes {
		if !models.ValidMeetingType(v) {
			http.Error(w, "Invalid meeting_type value", http.StatusBadRequest)
			return
		}
	}

	jobs, err := h.Svc.Jobs.ListOpenJobs(r.Context(), meetingTypes, params.Limit, params.Offset)
	if err != nil {
		http.Error(w, "Failed to get jobs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, jobs)
}

// GetJobHandler returns the job, plus its quotes when the caller owns it.
func (h *Handler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		http.Error(w, "Missing jobId", http.StatusBadRequest)
		return
	}

	job, err := h.Svc.Jobs.Get(r.Context(), jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := struct {
		*models.Job
		Quotes []models.Quote `json:"quotes,omitempty"`
	}{Job: job}

	if caller := userID(r); caller == job.ClientID {
		quotes, err := h.Svc.Quotes.ListForJob(r.Context(), caller, jobID)
		if err == nil {
			resp.Quotes = quotes
		}
	}
	writeJSON(w, resp)
}

func (h *Handler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	h.jobTransition(w, r, h.Svc.Jobs.Cancel)
}

func (h *Handler) DisputeJobHandler(w http.ResponseWriter, r *http.Request) {
	h.jobTransition(w, r, h.Svc.Jobs.Dispute)
}

func (h *Handler) jobTransition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, clientID, jobID string) (*models.Job, error)) {

	jobID := chi.URLParam(r, "jobId")
	client := userID(r)
	if jobID == "" || client == "" {
		http.Error(w, "Missing jobId or userId", http.StatusBadRequest)
		return
	}

	job, err := op(r.Context(), client, jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, job)
}
