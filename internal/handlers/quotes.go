package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"repmarket/internal/core"
)

func (h *Handler) CreateQuoteHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	rep := userID(r)
	if rep == "" {
		http.Error(w, "Missing userId parameter", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var input core.QuoteInput
	if err := json.Unmarshal(body, &input); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	quote, err := h.Svc.Quotes.Submit(r.Context(), rep, input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(quote)
}

// GetUserQuotesHandler возвращает предложения представителя
func (h *Handler) GetUserQuotesHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	rep := userID(r)
	if rep == "" {
		http.Error(w, "Missing userId parameter", http.StatusBadRequest)
		return
	}
	status := r.URL.Query().Get("status")

	quotes, err := h.Svc.Quotes.ListRepQuotes(r.Context(), rep, status, params.Limit, params.Offset)
	if err != nil {
		http.Error(w, "Failed to get user quotes", http.StatusInternalServerError)
		return
	}
	writeJSON(w, quotes)
}

// GetQuotesForJobHandler lists a job's quotes for its owning client.
func (h *Handler) GetQuotesForJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	client := userID(r)
	if jobID == "" || client == "" {
		http.Error(w, "Missing jobId or userId", http.StatusBadRequest)
		return
	}

	quotes, err := h.Svc.Quotes.ListForJob(r.Context(), client, jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, quotes)
}

func (h *Handler) WithdrawQuoteHandler(w http.ResponseWriter, r *http.Request) {
	quoteID := chi.URLParam(r, "quoteId")
	rep := userID(r)
	if quoteID == "" || rep == "" {
		http.Error(w, "Missing quoteId or userId", http.StatusBadRequest)
		return
	}

	quote, err := h.Svc.Quotes.Withdraw(r.Context(), rep, quoteID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, quote)
}

// AcceptQuoteHandler runs the acceptance transaction: the target quote is
// accepted, siblings rejected, the job moves to in_progress and the
// assignment is created. The response carries all three.
func (h *Handler) AcceptQuoteHandler(w http.ResponseWriter, r *http.Request) {
	quoteID := chi.URLParam(r, "quoteId")
	client := userID(r)
	if quoteID == "" || client == "" {
		http.Error(w, "Missing quoteId or userId", http.StatusBadRequest)
		return
	}

	result, err := h.Svc.Quotes.Accept(r.Context(), client, quoteID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, result)
}
