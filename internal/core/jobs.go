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

// JobLifecycle owns job records and their status state machine. The
// in_progress transition on quote acceptance is applied inside the accept
// transaction; this service validates it and applies everything else.
type JobLifecycle struct {
	store Storage
	pub   events.Publisher
	now   func() time.Time
}

type JobInput struct {
	SelectedEntityID string              `json:"selectedEntityId"`
	MeetingType      string              `json:"meetingType"`
	DateTime         time.Time           `json:"dateTime"`
	Location         models.Location     `json:"location"`
	Budget           string              `json:"budget"`
	Requirements     models.Requirements `json:"requirements"`
	Attachments      models.Attachments  `json:"attachments"`
	AdditionalNotes  string              `json:"additionalNotes"`
}

// Post creates a job in the open state.
func (j *JobLifecycle) Post(ctx context.Context, clientID string, in JobInput) (*models.Job, error) {
	entity, err := j.store.GetEntity(ctx, in.SelectedEntityID)
	if err != nil || entity.OwnerID != clientID {
		return nil, &common.ValidationError{Field: "selectedEntityId", Reason: "must reference an entity owned by the caller"}
	}
	if !models.ValidMeetingType(in.MeetingType) {
		return nil, &common.ValidationError{Field: "meetingType", Reason: "unrecognized meeting type"}
	}
	now := j.now()
	if !in.DateTime.After(now) {
		return nil, &common.ValidationError{Field: "dateTime", Reason: "must be in the future"}
	}
	if len(in.Requirements.Tasks) == 0 {
		return nil, &common.ValidationError{Field: "requirements.tasks", Reason: "at least one task is required"}
	}

	job := &models.Job{
		ID:               "job_" + uuid.NewString(),
		ClientID:         clientID,
		SelectedEntityID: in.SelectedEntityID,
		Status:           models.JobStatusOpen,
		MeetingType:      in.MeetingType,
		DateTime:         in.DateTime,
		Location:         in.Location,
		Budget:           in.Budget,
		Requirements:     in.Requirements,
		Attachments:      in.Attachments,
		AdditionalNotes:  in.AdditionalNotes,
		CreatedAt:        now,
	}
	if err := j.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	j.pub.Publish(ctx, events.Event{
		Type: events.TypeJobPosted, Subject: job.ID, At: now, Payload: job,
	})
	return job, nil
}

// Cancel is allowed only while the job is still open.
func (j *JobLifecycle) Cancel(ctx context.Context, clientID, jobID string) (*models.Job, error) {
	return j.clientTransition(ctx, clientID, jobID, models.JobStatusOpen, models.JobStatusCancelled)
}

// Dispute flags an in-progress job as disputed.
func (j *JobLifecycle) Dispute(ctx context.Context, clientID, jobID string) (*models.Job, error) {
	return j.clientTransition(ctx, clientID, jobID, models.JobStatusInProgress, models.JobStatusDisputed)
}

func (j *JobLifecycle) clientTransition(ctx context.Context, clientID, jobID, from, to string) (*models.Job, error) {
	job, err := j.owned(ctx, clientID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != from {
		return nil, &common.InvalidStateTransition{Kind: "job", From: job.Status, To: to}
	}
	if err := j.store.UpdateJobStatus(ctx, jobID, from, to); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, &common.InvalidStateTransition{Kind: "job", From: from, To: to}
		}
		return nil, err
	}
	job.Status = to

	j.pub.Publish(ctx, events.Event{
		Type: events.TypeJobStatusChanged, Subject: jobID, At: j.now(),
		Payload: map[string]string{"from": from, "to": to},
	})
	return job, nil
}

// guardQuoteAccepted validates the open -> in_progress edge taken when a
// quote is accepted. The write itself happens inside the accept transaction.
func (j *JobLifecycle) guardQuoteAccepted(job *models.Job) error {
	if job.Status != models.JobStatusOpen {
		return &common.InvalidStateTransition{Kind: "job", From: job.Status, To: models.JobStatusInProgress}
	}
	return nil
}

// transitionOnCompletion moves the job to completed once its assignment's
// completion report lands.
func (j *JobLifecycle) transitionOnCompletion(ctx context.Context, jobID string) error {
	err := j.store.UpdateJobStatus(ctx, jobID, models.JobStatusInProgress, models.JobStatusCompleted)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return &common.InvalidStateTransition{Kind: "job", From: models.JobStatusInProgress, To: models.JobStatusCompleted}
		}
		return err
	}
	j.pub.Publish(ctx, events.Event{
		Type: events.TypeJobStatusChanged, Subject: jobID, At: j.now(),
		Payload: map[string]string{"from": models.JobStatusInProgress, "to": models.JobStatusCompleted},
	})
	return nil
}

func (j *JobLifecycle) Get(ctx context.Context, jobID string) (*models.Job, error) {
	return j.store.GetJob(ctx, jobID)
}

func (j *JobLifecycle) ListClientJobs(ctx context.Context, clientID, status string, limit, offset int) ([]models.Job, error) {
	return j.store.GetClientJobs(ctx, clientID, status, limit, offset)
}

// ListOpenJobs is the representative marketplace view.
func (j *JobLifecycle) ListOpenJobs(ctx context.Context, meetingTypes []string, limit, offset int) ([]models.Job, error) {
	return j.store.GetOpenJobs(ctx, meetingTypes, limit, offset)
}

func (j *JobLifecycle) owned(ctx context.Context, clientID, jobID string) (*models.Job, error) {
	job, err := j.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != clientID {
		return nil, &common.NotFoundError{Kind: "job", ID: jobID}
	}
	return job, nil
}
