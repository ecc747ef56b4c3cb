// Package core implements the marketplace lifecycle engine: entity registry,
// job lifecycle, quote ledger and assignment tracking. Each service is the
// sole mutator of its collection; quote acceptance is the one multi-aggregate
// write and runs as a single storage transaction serialized per job.
package core

import (
	"context"
	"sync"
	"time"

	"repmarket/internal/events"
	"repmarket/models"
)

// Storage is the persistence contract the services run on. The Postgres
// implementation lives in the db package, the in-memory one in memstore.
// Get* methods return a NotFoundError for missing ids; guarded status writes
// return common.ErrConflict when the record changed underneath.
type Storage interface {
	CreateEntity(ctx context.Context, e *models.Entity) error
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	GetOwnerEntities(ctx context.Context, ownerID string) ([]models.Entity, error)
	UpdateEntity(ctx context.Context, e *models.Entity) error
	SetDefaultEntity(ctx context.Context, ownerID, entityID string) error
	DeleteEntity(ctx context.Context, entityID, newDefaultID string) error

	CreateJob(ctx context.Context, j *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, jobID, from, to string) error
	GetClientJobs(ctx context.Context, clientID, status string, limit, offset int) ([]models.Job, error)
	GetOpenJobs(ctx context.Context, meetingTypes []string, limit, offset int) ([]models.Job, error)

	CreateQuote(ctx context.Context, q *models.Quote) error
	GetQuote(ctx context.Context, id string) (*models.Quote, error)
	UpdateQuoteStatus(ctx context.Context, quoteID, from, to string) error
	GetQuotesForJob(ctx context.Context, jobID string) ([]models.Quote, error)
	GetRepQuotes(ctx context.Context, repID, status string, limit, offset int) ([]models.Quote, error)

	// AcceptQuote atomically marks the quote accepted, rejects its pending
	// siblings, moves the job to in_progress and inserts the assignment.
	// Any guard failing rolls the whole write back with ErrConflict.
	AcceptQuote(ctx context.Context, quoteID, jobID string, a *models.Assignment) error

	GetAssignment(ctx context.Context, id string) (*models.Assignment, error)
	GetRepAssignments(ctx context.Context, repID string, limit, offset int) ([]models.Assignment, error)
	CompleteAssignment(ctx context.Context, assignmentID string, completedAt time.Time, report models.CompletionReport) error
}

// Service bundles the four aggregate services over one storage backend.
type Service struct {
	Entities    *EntityRegistry
	Jobs        *JobLifecycle
	Quotes      *QuoteLedger
	Assignments *AssignmentTracker
}

func New(store Storage, pub events.Publisher) *Service {
	now := time.Now
	jobs := &JobLifecycle{store: store, pub: pub, now: now}
	assignments := &AssignmentTracker{store: store, pub: pub, now: now, jobs: jobs}
	return &Service{
		Entities: &EntityRegistry{
			store: store, pub: pub, now: now,
			ownerLock: &keyedMutex{locks: map[string]*lockEntry{}},
		},
		Jobs:        jobs,
		Assignments: assignments,
		Quotes: &QuoteLedger{
			store: store, pub: pub, now: now,
			jobs:    jobs,
			jobLock: &keyedMutex{locks: map[string]*lockEntry{}},
		},
	}
}

// WithClock swaps the time source on all services. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.Entities.now = now
	s.Jobs.now = now
	s.Quotes.now = now
	s.Assignments.now = now
	return s
}

// keyedMutex serializes work per key. Entries are removed once the last
// waiter releases, so the map does not grow with job count.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	e := k.locks[key]
	if e == nil {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
