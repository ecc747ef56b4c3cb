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

// AssignmentTracker owns the post-acceptance execution record. Assignments
// are only ever created through QuoteLedger.Accept; the tracker mutates
// execution fields and projects the time-derived status on reads.
type AssignmentTracker struct {
	store Storage
	pub   events.Publisher
	now   func() time.Time
	jobs  *JobLifecycle
}

// buildAssignment materializes the execution record for an accepted quote,
// snapshotting the meeting details as they stand at acceptance time.
func buildAssignment(q *models.Quote, job *models.Job, now time.Time) *models.Assignment {
	return &models.Assignment{
		ID:             "assignment_" + uuid.NewString(),
		RepID:          q.RepID,
		JobID:          job.ID,
		QuoteID:        q.ID,
		ClientID:       job.ClientID,
		Amount:         q.Amount,
		Currency:       q.Currency,
		Status:         models.AssignmentStatusUpcoming,
		Transportation: q.Transportation.Details,
		MeetingDetails: models.MeetingDetails{
			Type:     job.MeetingType,
			DateTime: job.DateTime,
			Location: job.Location.Address,
		},
		AssignedAt: now,
	}
}

// SubmitCompletionReport closes out an assignment. Allowed only once, and
// only once the meeting time has passed (derived status in_progress). Sets
// completedAt and the report together and moves the job to completed.
func (t *AssignmentTracker) SubmitCompletionReport(ctx context.Context, repID, assignmentID string, report models.CompletionReport) (*models.Assignment, error) {
	a, err := t.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.RepID != repID {
		return nil, &common.NotFoundError{Kind: "assignment", ID: assignmentID}
	}

	now := t.now()
	switch a.DerivedStatus(now) {
	case models.AssignmentStatusCompleted:
		return nil, &common.InvalidStateTransition{Kind: "assignment", From: models.AssignmentStatusCompleted, To: models.AssignmentStatusCompleted}
	case models.AssignmentStatusUpcoming:
		return nil, &common.InvalidStateTransition{Kind: "assignment", From: models.AssignmentStatusUpcoming, To: models.AssignmentStatusCompleted}
	}

	// The job must still be in_progress; a disputed or cancelled job must not
	// gain a completed assignment, so check before any write.
	job, err := t.store.GetJob(ctx, a.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusInProgress {
		return nil, &common.InvalidStateTransition{Kind: "job", From: job.Status, To: models.JobStatusCompleted}
	}

	if err := t.store.CompleteAssignment(ctx, assignmentID, now, report); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, &common.InvalidStateTransition{Kind: "assignment", From: models.AssignmentStatusCompleted, To: models.AssignmentStatusCompleted}
		}
		return nil, err
	}
	if err := t.jobs.transitionOnCompletion(ctx, a.JobID); err != nil {
		return nil, err
	}

	a.Status = models.AssignmentStatusCompleted
	a.CompletedAt = &now
	a.CompletionReport = report

	t.pub.Publish(ctx, events.Event{
		Type: events.TypeAssignmentCompleted, Subject: a.ID, At: now,
		Payload: map[string]string{"jobId": a.JobID, "repId": a.RepID},
	})
	return a, nil
}

// Get returns the assignment with its status projected for the current time.
func (t *AssignmentTracker) Get(ctx context.Context, callerID, assignmentID string) (*models.Assignment, error) {
	a, err := t.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.RepID != callerID && a.ClientID != callerID {
		return nil, &common.NotFoundError{Kind: "assignment", ID: assignmentID}
	}
	a.Status = a.DerivedStatus(t.now())
	return a, nil
}

// ListRepAssignments returns a rep's assignments with projected statuses,
// optionally filtered by the projected value.
func (t *AssignmentTracker) ListRepAssignments(ctx context.Context, repID, status string, limit, offset int) ([]models.Assignment, error) {
	all, err := t.store.GetRepAssignments(ctx, repID, limit, offset)
	if err != nil {
		return nil, err
	}
	now := t.now()
	out := all[:0]
	for _, a := range all {
		a.Status = a.DerivedStatus(now)
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
