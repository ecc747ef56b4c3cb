package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"repmarket/internal/core"
	"repmarket/internal/events"
	"repmarket/internal/memstore"
	"repmarket/models"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	svc   *core.Service
	store *memstore.Store
	pub   *capturePublisher
	now   time.Time
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store: memstore.New(),
		pub:   &capturePublisher{},
		now:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	env.svc = core.New(env.store, env.pub).WithClock(func() time.Time { return env.now })
	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

func (env *testEnv) createEntity(t *testing.T, owner, name string) *models.Entity {
	t.Helper()
	e, err := env.svc.Entities.Create(context.Background(), owner, core.EntityInput{
		Name:    name,
		Type:    "Private Company",
		Phone:   "+27214567890",
		Email:   "info@" + name + ".co.za",
		Address: "456 Business Park, Cape Town",
	})
	require.NoError(t, err)
	// keep creation timestamps distinct for default-reassignment ordering
	env.advance(time.Second)
	return e
}

func (env *testEnv) postJob(t *testing.T, client, entityID string) *models.Job {
	t.Helper()
	job, err := env.svc.Jobs.Post(context.Background(), client, core.JobInput{
		SelectedEntityID: entityID,
		MeetingType:      "tender_briefing",
		DateTime:         env.now.Add(72 * time.Hour),
		Location:         models.Location{Address: "456 Government Ave, Pretoria"},
		Requirements:     models.Requirements{Attire: "formal", Tasks: []string{"sign_register"}},
	})
	require.NoError(t, err)
	return job
}

func (env *testEnv) submitQuote(t *testing.T, rep, jobID string, amount float64) *models.Quote {
	t.Helper()
	q, err := env.svc.Quotes.Submit(context.Background(), rep, core.QuoteInput{
		JobID:  jobID,
		Amount: amount,
	})
	require.NoError(t, err)
	return q
}
