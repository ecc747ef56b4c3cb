// Package db is the Postgres implementation of the core storage contract,
// built on sqlx. Guarded status updates compare-and-set on the current status
// and report common.ErrConflict when no row matched; quote acceptance runs in
// a single transaction with the job row locked.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"repmarket/internal/common"
	"repmarket/models"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// Entity

func (s *Storage) CreateEntity(ctx context.Context, e *models.Entity) error {
	query := `
        INSERT INTO entity
            (id, owner_id, name, type, phone, email, address,
             registration_number, cipc_number, csd_number, tax_number, vat_number,
             is_default, created_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING updated_at`
	return s.db.QueryRowContext(ctx, query,
		e.ID, e.OwnerID, e.Name, e.Type, e.Phone, e.Email, e.Address,
		e.RegistrationNumber, e.CipcNumber, e.CsdNumber, e.TaxNumber, e.VatNumber,
		e.IsDefault, e.CreatedAt).
		Scan(&e.UpdatedAt)
}

func (s *Storage) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	e := &models.Entity{}
	query := `SELECT * FROM entity WHERE id=$1`
	err := s.db.GetContext(ctx, e, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &common.NotFoundError{Kind: "entity", ID: id}
	}
	return e, err
}

func (s *Storage) GetOwnerEntities(ctx context.Context, ownerID string) ([]models.Entity, error) {
	entities := []models.Entity{}
	query := `SELECT * FROM entity WHERE owner_id=$1 ORDER BY created_at ASC, id ASC`
	err := s.db.SelectContext(ctx, &entities, query, ownerID)
	return entities, err
}

func (s *Storage) UpdateEntity(ctx context.Context, e *models.Entity) error {
	query := `
        UPDATE entity
        SET name=$1, type=$2, phone=$3, email=$4, address=$5,
            registration_number=$6, cipc_number=$7, csd_number=$8,
            tax_number=$9, vat_number=$10, updated_at=NOW()
        WHERE id=$11`
	res, err := s.db.ExecContext(ctx, query,
		e.Name, e.Type, e.Phone, e.Email, e.Address,
		e.RegistrationNumber, e.CipcNumber, e.CsdNumber,
		e.TaxNumber, e.VatNumber, e.ID)
	if err != nil {
		return err
	}
	return requireRow(res, &common.NotFoundError{Kind: "entity", ID: e.ID})
}

// SetDefaultEntity flips the default flag to the target entity in one
// transaction. The old default is cleared first so the partial unique index on
// (owner_id) WHERE is_default never sees two defaults.
func (s *Storage) SetDefaultEntity(ctx context.Context, ownerID, entityID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE entity SET is_default=FALSE, updated_at=NOW() WHERE owner_id=$1 AND is_default`, ownerID)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE entity SET is_default=TRUE, updated_at=NOW() WHERE id=$1 AND owner_id=$2`, entityID, ownerID)
	if err != nil {
		return err
	}
	if err := requireRow(res, &common.NotFoundError{Kind: "entity", ID: entityID}); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteEntity removes the entity and, when newDefaultID is set, promotes the
// successor default in the same transaction.
func (s *Storage) DeleteEntity(ctx context.Context, entityID, newDefaultID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM entity WHERE id=$1`, entityID)
	if err != nil {
		return err
	}
	if err := requireRow(res, &common.NotFoundError{Kind: "entity", ID: entityID}); err != nil {
		return err
	}
	if newDefaultID != "" {
		_, err = tx.ExecContext(ctx,
			`UPDATE entity SET is_default=TRUE, updated_at=NOW() WHERE id=$1`, newDefaultID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Job

func (s *Storage) CreateJob(ctx context.Context, j *models.Job) error {
	query := `
        INSERT INTO job
            (id, client_id, selected_entity_id, status, meeting_type, date_time,
             location, budget, requirements, attachments, additional_notes, created_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING updated_at`
	return s.db.QueryRowContext(ctx, query,
		j.ID, j.ClientID, j.SelectedEntityID, j.Status, j.MeetingType, j.DateTime,
		j.Location, j.Budget, j.Requirements, j.Attachments, j.AdditionalNotes, j.CreatedAt).
		Scan(&j.UpdatedAt)
}

func (s *Storage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	j := &models.Job{}
	query := `SELECT * FROM job WHERE id=$1`
	err := s.db.GetContext(ctx, j, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &common.NotFoundError{Kind: "job", ID: id}
	}
	return j, err
}

func (s *Storage) UpdateJobStatus(ctx context.Context, jobID, from, to string) error {
	query := `UPDATE job SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	res, err := s.db.ExecContext(ctx, query, to, jobID, from)
	if err != nil {
		return err
	}
	return requireRow(res, common.ErrConflict)
}

func (s *Storage) GetClientJobs(ctx context.Context, clientID, status string, limit, offset int) ([]models.Job, error) {
	query := `SELECT * FROM job WHERE client_id=$1`
	args := []interface{}{clientID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	jobs := []models.Job{}
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	return jobs, err
}

func (s *Storage) GetOpenJobs(ctx context.Context, meetingTypes []string, limit, offset int) ([]models.Job, error) {
	baseQuery := `SELECT * FROM job WHERE status='open'`
	var args []interface{}

	if len(meetingTypes) > 0 {
		placeholders := make([]string, len(meetingTypes))
		for i, v := range meetingTypes {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, v)
		}
		baseQuery += fmt.Sprintf(" AND meeting_type IN (%s)", strings.Join(placeholders, ", "))
	}
	query := baseQuery + fmt.Sprintf(" ORDER BY date_time ASC LIMIT %d OFFSET %d", limit, offset)

	jobs := []models.Job{}
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	return jobs, err
}

// Quote

func (s *Storage) CreateQuote(ctx context.Context, q *models.Quote) error {
	query := `
        INSERT INTO quote
            (id, rep_id, job_id, amount, currency, transportation, estimated_arrival,
             availability, special_considerations, additional_notes, quoted_at, valid_until, status)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING updated_at`
	return s.db.QueryRowContext(ctx, query,
		q.ID, q.RepID, q.JobID, q.Amount, q.Currency, q.Transportation, q.EstimatedArrival,
		q.Availability, q.SpecialConsiderations, q.AdditionalNotes, q.QuotedAt, q.ValidUntil, q.Status).
		Scan(&q.UpdatedAt)
}

func (s *Storage) GetQuote(ctx context.Context, id string) (*models.Quote, error) {
	q := &models.Quote{}
	query := `SELECT * FROM quote WHERE id=$1`
	err := s.db.GetContext(ctx, q, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &common.NotFoundError{Kind: "quote", ID: id}
	}
	return q, err
}

func (s *Storage) UpdateQuoteStatus(ctx context.Context, quoteID, from, to string) error {
	query := `UPDATE quote SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	res, err := s.db.ExecContext(ctx, query, to, quoteID, from)
	if err != nil {
		return err
	}
	return requireRow(res, common.ErrConflict)
}

func (s *Storage) GetQuotesForJob(ctx context.Context, jobID string) ([]models.Quote, error) {
	quotes := []models.Quote{}
	query := `SELECT * FROM quote WHERE job_id=$1 ORDER BY quoted_at ASC`
	err := s.db.SelectContext(ctx, &quotes, query, jobID)
	return quotes, err
}

func (s *Storage) GetRepQuotes(ctx context.Context, repID, status string, limit, offset int) ([]models.Quote, error) {
	query := `SELECT * FROM quote WHERE rep_id=$1`
	args := []interface{}{repID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY quoted_at DESC LIMIT %d OFFSET %d`, limit, offset)

	quotes := []models.Quote{}
	err := s.db.SelectContext(ctx, &quotes, query, args...)
	return quotes, err
}

// AcceptQuote runs the whole acceptance write set in one transaction. The job
// row is locked first, so concurrent accepts on the same job serialize here
// and the loser fails its status guard and rolls back untouched.
func (s *Storage) AcceptQuote(ctx context.Context, quoteID, jobID string, a *models.Assignment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var jobStatus string
	err = tx.GetContext(ctx, &jobStatus, `SELECT status FROM job WHERE id=$1 FOR UPDATE`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return &common.NotFoundError{Kind: "job", ID: jobID}
	}
	if err != nil {
		return err
	}
	if jobStatus != models.JobStatusOpen {
		return common.ErrConflict
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE quote SET status='accepted', updated_at=NOW() WHERE id=$1 AND status='pending'`, quoteID)
	if err != nil {
		return err
	}
	if err := requireRow(res, common.ErrConflict); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE quote SET status='rejected', updated_at=NOW() WHERE job_id=$1 AND id<>$2 AND status='pending'`,
		jobID, quoteID)
	if err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE job SET status='in_progress', updated_at=NOW() WHERE id=$1 AND status='open'`, jobID)
	if err != nil {
		return err
	}
	if err := requireRow(res, common.ErrConflict); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO assignment
            (id, rep_id, job_id, quote_id, client_id, amount, currency, status,
             transportation, meeting_details, assigned_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.RepID, a.JobID, a.QuoteID, a.ClientID, a.Amount, a.Currency, a.Status,
		a.Transportation, a.MeetingDetails, a.AssignedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Assignment

func (s *Storage) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	a := &models.Assignment{}
	query := `SELECT * FROM assignment WHERE id=$1`
	err := s.db.GetContext(ctx, a, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &common.NotFoundError{Kind: "assignment", ID: id}
	}
	return a, err
}

func (s *Storage) GetRepAssignments(ctx context.Context, repID string, limit, offset int) ([]models.Assignment, error) {
	assignments := []models.Assignment{}
	query := `SELECT * FROM assignment WHERE rep_id=$1 ORDER BY assigned_at DESC LIMIT $2 OFFSET $3`
	err := s.db.SelectContext(ctx, &assignments, query, repID, limit, offset)
	return assignments, err
}

func (s *Storage) CompleteAssignment(ctx context.Context, assignmentID string, completedAt time.Time, report models.CompletionReport) error {
	query := `
        UPDATE assignment
        SET status='completed', completed_at=$1, completion_report=$2, updated_at=NOW()
        WHERE id=$3 AND status<>'completed'`
	res, err := s.db.ExecContext(ctx, query, completedAt, report, assignmentID)
	if err != nil {
		return err
	}
	return requireRow(res, common.ErrConflict)
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
