// Package memstore is an in-memory implementation of the core storage
// contract. It backs the test suite and the -inmemory server mode; semantics
// (not-found mapping, guarded status writes, atomic accept) mirror the
// Postgres implementation in db.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"repmarket/internal/common"
	"repmarket/models"
)

type Store struct {
	mu          sync.RWMutex
	entities    map[string]models.Entity
	jobs        map[string]models.Job
	quotes      map[string]models.Quote
	assignments map[string]models.Assignment
}

func New() *Store {
	return &Store{
		entities:    map[string]models.Entity{},
		jobs:        map[string]models.Job{},
		quotes:      map[string]models.Quote{},
		assignments: map[string]models.Assignment{},
	}
}

// Entities

func (s *Store) CreateEntity(_ context.Context, e *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = *e
	return nil
}

func (s *Store) GetEntity(_ context.Context, id string) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, &common.NotFoundError{Kind: "entity", ID: id}
	}
	return &e, nil
}

func (s *Store) GetOwnerEntities(_ context.Context, ownerID string) ([]models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Entity{}
	for _, e := range s.entities {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateEntity(_ context.Context, e *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[e.ID]; !ok {
		return &common.NotFoundError{Kind: "entity", ID: e.ID}
	}
	s.entities[e.ID] = *e
	return nil
}

func (s *Store) SetDefaultEntity(_ context.Context, ownerID, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.entities[entityID]
	if !ok || target.OwnerID != ownerID {
		return &common.NotFoundError{Kind: "entity", ID: entityID}
	}
	for id, e := range s.entities {
		if e.OwnerID != ownerID {
			continue
		}
		e.IsDefault = id == entityID
		s.entities[id] = e
	}
	return nil
}

func (s *Store) DeleteEntity(_ context.Context, entityID, newDefaultID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[entityID]; !ok {
		return &common.NotFoundError{Kind: "entity", ID: entityID}
	}
	delete(s.entities, entityID)
	if newDefaultID != "" {
		if e, ok := s.entities[newDefaultID]; ok {
			e.IsDefault = true
			s.entities[newDefaultID] = e
		}
	}
	return nil
}

// Jobs

func (s *Store) CreateJob(_ context.Context, j *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = *j
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, &common.NotFoundError{Kind: "job", ID: id}
	}
	return &j, nil
}

func (s *Store) UpdateJobStatus(_ context.Context, jobID, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return &common.NotFoundError{Kind: "job", ID: jobID}
	}
	if j.Status != from {
		return common.ErrConflict
	}
	j.Status = to
	s.jobs[jobID] = j
	return nil
}

func (s *Store) GetClientJobs(_ context.Context, clientID, status string, limit, offset int) ([]models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Job{}
	for _, j := range s.jobs {
		if j.ClientID == clientID && (status == "" || j.Status == status) {
			out = append(out, j)
		}
	}
	sortJobs(out)
	return pageJobs(out, limit, offset), nil
}

func (s *Store) GetOpenJobs(_ context.Context, meetingTypes []string, limit, offset int) ([]models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Job{}
	for _, j := range s.jobs {
		if j.Status != models.JobStatusOpen {
			continue
		}
		if len(meetingTypes) > 0 && !contains(meetingTypes, j.MeetingType) {
			continue
		}
		out = append(out, j)
	}
	sortJobs(out)
	return pageJobs(out, limit, offset), nil
}

// Quotes

func (s *Store) CreateQuote(_ context.Context, q *models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.ID] = *q
	return nil
}

func (s *Store) GetQuote(_ context.Context, id string) (*models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[id]
	if !ok {
		return nil, &common.NotFoundError{Kind: "quote", ID: id}
	}
	return &q, nil
}

func (s *Store) UpdateQuoteStatus(_ context.Context, quoteID, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[quoteID]
	if !ok {
		return &common.NotFoundError{Kind: "quote", ID: quoteID}
	}
	if q.Status != from {
		return common.ErrConflict
	}
	q.Status = to
	s.quotes[quoteID] = q
	return nil
}

func (s *Store) GetQuotesForJob(_ context.Context, jobID string) ([]models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Quote{}
	for _, q := range s.quotes {
		if q.JobID == jobID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuotedAt.Before(out[j].QuotedAt) })
	return out, nil
}

func (s *Store) GetRepQuotes(_ context.Context, repID, status string, limit, offset int) ([]models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Quote{}
	for _, q := range s.quotes {
		if q.RepID == repID && (status == "" || q.Status == status) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuotedAt.After(out[j].QuotedAt) })
	if offset >= len(out) {
		return []models.Quote{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// AcceptQuote applies the whole acceptance write set under one lock. Guards
// run before any mutation, so a failure leaves the store untouched.
func (s *Store) AcceptQuote(_ context.Context, quoteID, jobID string, a *models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotes[quoteID]
	if !ok {
		return &common.NotFoundError{Kind: "quote", ID: quoteID}
	}
	j, ok := s.jobs[jobID]
	if !ok {
		return &common.NotFoundError{Kind: "job", ID: jobID}
	}
	if q.Status != models.QuoteStatusPending || j.Status != models.JobStatusOpen {
		return common.ErrConflict
	}

	q.Status = models.QuoteStatusAccepted
	s.quotes[quoteID] = q
	for id, sib := range s.quotes {
		if sib.JobID == jobID && sib.ID != quoteID && sib.Status == models.QuoteStatusPending {
			sib.Status = models.QuoteStatusRejected
			s.quotes[id] = sib
		}
	}
	j.Status = models.JobStatusInProgress
	s.jobs[jobID] = j
	s.assignments[a.ID] = *a
	return nil
}

// Assignments

func (s *Store) GetAssignment(_ context.Context, id string) (*models.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[id]
	if !ok {
		return nil, &common.NotFoundError{Kind: "assignment", ID: id}
	}
	return &a, nil
}

func (s *Store) GetRepAssignments(_ context.Context, repID string, limit, offset int) ([]models.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Assignment{}
	for _, a := range s.assignments {
		if a.RepID == repID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.After(out[j].AssignedAt) })
	if offset >= len(out) {
		return []models.Assignment{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CompleteAssignment(_ context.Context, assignmentID string, completedAt time.Time, report models.CompletionReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[assignmentID]
	if !ok {
		return &common.NotFoundError{Kind: "assignment", ID: assignmentID}
	}
	if a.Status == models.AssignmentStatusCompleted {
		return common.ErrConflict
	}
	a.Status = models.AssignmentStatusCompleted
	a.CompletedAt = &completedAt
	a.CompletionReport = report
	s.assignments[assignmentID] = a
	return nil
}

func sortJobs(jobs []models.Job) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
}

func pageJobs(jobs []models.Job, limit, offset int) []models.Job {
	if offset >= len(jobs) {
		return []models.Job{}
	}
	jobs = jobs[offset:]
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
