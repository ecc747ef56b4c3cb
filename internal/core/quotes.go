package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"repmarket/internal/common"
	"repmarket/internal/events"
	"repmarket/models"
)

// DefaultQuoteValidity applies when a submission carries no validUntil.
const DefaultQuoteValidity = 48 * time.Hour

const defaultCurrency = "ZAR"

// QuoteLedger owns quotes and their transitions. Accept is the one
// multi-aggregate operation; concurrent accepts on the same job are
// serialized through a per-job mutex, so at most one quote per job ever
// reaches accepted.
type QuoteLedger struct {
	store   Storage
	pub     events.Publisher
	now     func() time.Time
	jobs    *JobLifecycle
	jobLock *keyedMutex
}

type QuoteInput struct {
	JobID                 string                  `json:"jobId"`
	Amount                float64                 `json:"amount"`
	Currency              string                  `json:"currency"`
	Transportation        models.Transportation   `json:"transportation"`
	EstimatedArrival      models.EstimatedArrival `json:"estimatedArrival"`
	Availability          models.Availability     `json:"availability"`
	SpecialConsiderations []string                `json:"specialConsiderations"`
	AdditionalNotes       string                  `json:"additionalNotes"`
	ValidUntil            time.Time               `json:"validUntil"`
}

// AcceptResult carries everything the accept transaction produced.
type AcceptResult struct {
	Quote      *models.Quote      `json:"quote"`
	Job        *models.Job        `json:"job"`
	Assignment *models.Assignment `json:"assignment"`
}

// Submit records a pending quote against an open job. A zero validUntil
// defaults to 48 hours from now.
func (l *QuoteLedger) Submit(ctx context.Context, repID string, in QuoteInput) (*models.Quote, error) {
	if in.Amount <= 0 {
		return nil, &common.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	job, err := l.store.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusOpen {
		return nil, &common.ValidationError{Field: "jobId", Reason: "job is not open for quotes"}
	}

	now := l.now()
	validUntil := in.ValidUntil
	if validUntil.IsZero() {
		validUntil = now.Add(DefaultQuoteValidity)
	}
	if !validUntil.After(now) {
		return nil, &common.ValidationError{Field: "validUntil", Reason: "must be in the future"}
	}
	currency := in.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	q := &models.Quote{
		ID:                    "quote_" + uuid.NewString(),
		RepID:                 repID,
		JobID:                 in.JobID,
		Amount:                in.Amount,
		Currency:              currency,
		Transportation:        in.Transportation,
		EstimatedArrival:      in.EstimatedArrival,
		Availability:          in.Availability,
		SpecialConsiderations: in.SpecialConsiderations,
		AdditionalNotes:       in.AdditionalNotes,
		QuotedAt:              now,
		ValidUntil:            validUntil,
		Status:                models.QuoteStatusPending,
	}
	if err := l.store.CreateQuote(ctx, q); err != nil {
		return nil, err
	}

	l.pub.Publish(ctx, events.Event{
		Type: events.TypeQuoteSubmitted, Subject: q.ID, At: now, Payload: q,
	})
	return q, nil
}

// Withdraw retracts a rep's own pending quote.
func (l *QuoteLedger) Withdraw(ctx context.Context, repID, quoteID string) (*models.Quote, error) {
	q, err := l.store.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if q.RepID != repID {
		return nil, &common.NotFoundError{Kind: "quote", ID: quoteID}
	}
	if q.Status != models.QuoteStatusPending {
		return nil, &common.InvalidStateTransition{Kind: "quote", From: q.Status, To: models.QuoteStatusWithdrawn}
	}
	err = l.store.UpdateQuoteStatus(ctx, quoteID, models.QuoteStatusPending, models.QuoteStatusWithdrawn)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, &common.InvalidStateTransition{Kind: "quote", From: q.Status, To: models.QuoteStatusWithdrawn}
		}
		return nil, err
	}
	q.Status = models.QuoteStatusWithdrawn
	return q, nil
}

// Accept is the cross-aggregate transaction: the target quote becomes
// accepted, every other pending quote on the job becomes rejected, the job
// moves to in_progress and the assignment is materialized. All of it commits
// or none of it does.
func (l *QuoteLedger) Accept(ctx context.Context, clientID, quoteID string) (*AcceptResult, error) {
	q, err := l.store.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	unlock := l.jobLock.lock(q.JobID)
	defer unlock()

	// Re-read under the job lock; a concurrent accept may have won.
	q, err = l.store.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	job, err := l.store.GetJob(ctx, q.JobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != clientID {
		return nil, &common.NotFoundError{Kind: "quote", ID: quoteID}
	}
	if q.Status != models.QuoteStatusPending {
		return nil, &common.InvalidStateTransition{Kind: "quote", From: q.Status, To: models.QuoteStatusAccepted}
	}
	now := l.now()
	if q.Expired(now) {
		return nil, &common.ExpiredError{Kind: "quote", ID: quoteID, At: q.ValidUntil}
	}
	if err := l.jobs.guardQuoteAccepted(job); err != nil {
		return nil, err
	}

	assignment := buildAssignment(q, job, now)
	if err := l.store.AcceptQuote(ctx, quoteID, q.JobID, assignment); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, &common.InvalidStateTransition{Kind: "quote", From: q.Status, To: models.QuoteStatusAccepted}
		}
		return nil, err
	}
	q.Status = models.QuoteStatusAccepted
	job.Status = models.JobStatusInProgress

	l.pub.Publish(ctx, events.Event{
		Type: events.TypeQuoteAccepted, Subject: q.ID, At: now,
		Payload: map[string]string{"jobId": job.ID, "repId": q.RepID},
	})
	l.pub.Publish(ctx, events.Event{
		Type: events.TypeJobStatusChanged, Subject: job.ID, At: now,
		Payload: map[string]string{"from": models.JobStatusOpen, "to": models.JobStatusInProgress},
	})
	l.pub.Publish(ctx, events.Event{
		Type: events.TypeAssignmentCreated, Subject: assignment.ID, At: now, Payload: assignment,
	})

	return &AcceptResult{Quote: q, Job: job, Assignment: assignment}, nil
}

// ListForJob returns a job's quotes to its owning client. Expiry is exposed
// at read time; storage is not touched.
func (l *QuoteLedger) ListForJob(ctx context.Context, clientID, jobID string) ([]models.Quote, error) {
	job, err := l.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != clientID {
		return nil, &common.NotFoundError{Kind: "job", ID: jobID}
	}
	return l.store.GetQuotesForJob(ctx, jobID)
}

func (l *QuoteLedger) ListRepQuotes(ctx context.Context, repID, status string, limit, offset int) ([]models.Quote, error) {
	return l.store.GetRepQuotes(ctx, repID, status, limit, offset)
}
