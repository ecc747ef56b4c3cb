package handlers_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"repmarket/internal/core"
	"repmarket/internal/events"
	"repmarket/internal/handlers"
	"repmarket/internal/handlers/testutils"
	"repmarket/internal/memstore"
	"repmarket/models"
)

// nopPublisher глушит события в тестах хендлеров
type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.Event) {}

type handlerEnv struct {
	handler *handlers.Handler
	svc     *core.Service
	now     time.Time
}

func newHandlerEnv() *handlerEnv {
	env := &handlerEnv{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	env.svc = core.New(memstore.New(), nopPublisher{}).
		WithClock(func() time.Time { return env.now })
	env.handler = handlers.NewHandler(env.svc)
	return env
}

func (env *handlerEnv) seedEntity(t *testing.T, owner string) *models.Entity {
	t.Helper()
	e, err := env.svc.Entities.Create(context.Background(), owner, core.EntityInput{
		Name:    "ABC Company",
		Phone:   "+27214567890",
		Email:   "info@abc.co.za",
		Address: "456 Business Park, Cape Town",
	})
	require.NoError(t, err)
	env.now = env.now.Add(time.Second)
	return e
}

func (env *handlerEnv) seedJob(t *testing.T, client, entityID string) *models.Job {
	t.Helper()
	job, err := env.svc.Jobs.Post(context.Background(), client, core.JobInput{
		SelectedEntityID: entityID,
		MeetingType:      "tender_briefing",
		DateTime:         env.now.Add(72 * time.Hour),
		Location:         models.Location{Address: "456 Government Ave, Pretoria"},
		Requirements:     models.Requirements{Tasks: []string{"sign_register"}},
	})
	require.NoError(t, err)
	return job
}

func (env *handlerEnv) seedQuote(t *testing.T, rep, jobID string) *models.Quote {
	t.Helper()
	q, err := env.svc.Quotes.Submit(context.Background(), rep, core.QuoteInput{
		JobID:  jobID,
		Amount: 250,
	})
	require.NoError(t, err)
	return q
}

func TestPingHandler(t *testing.T) {
	env := newHandlerEnv()

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	w := httptest.NewRecorder()

	env.handler.PingHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "ok", string(body))
}

func TestCreateEntityHandler(t *testing.T) {
	env := newHandlerEnv()

	reqBody := `{
        "name": "ABC Company",
        "type": "Private Company",
        "phone": "+27214567890",
        "email": "info@abc.co.za",
        "address": "456 Business Park, Cape Town"
    }`
	req := httptest.NewRequest(http.MethodPost, "/api/entities/new?userId=user_001", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	env.handler.CreateEntityHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), "ABC Company")
	require.Contains(t, string(body), `"isDefault":true`)
}

func TestCreateEntityHandlerValidation(t *testing.T) {
	env := newHandlerEnv()

	// email и address отсутствуют
	reqBody := `{"name": "ABC Company", "phone": "+27214567890"}`
	req := httptest.NewRequest(http.MethodPost, "/api/entities/new?userId=user_001", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	env.handler.CreateEntityHandler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestCreateEntityHandlerMissingUser(t *testing.T) {
	env := newHandlerEnv()

	req := httptest.NewRequest(http.MethodPost, "/api/entities/new", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	env.handler.CreateEntityHandler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestDeleteEntityHandlerLastEntity(t *testing.T) {
	env := newHandlerEnv()
	e := env.seedEntity(t, "user_001")

	req := httptest.NewRequest(http.MethodDelete, "/api/entities/"+e.ID+"?userId=user_001", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"entityId": e.ID})
	w := httptest.NewRecorder()

	env.handler.DeleteEntityHandler(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Result().StatusCode)
}

func TestDeleteEntityHandler(t *testing.T) {
	env := newHandlerEnv()
	env.seedEntity(t, "user_001")
	e2 := env.seedEntity(t, "user_001")

	req := httptest.NewRequest(http.MethodDelete, "/api/entities/"+e2.ID+"?userId=user_001", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"entityId": e2.ID})
	w := httptest.NewRecorder()

	env.handler.DeleteEntityHandler(w, req)

	require.Equal(t, http.StatusNoContent, w.Result().StatusCode)
}

func TestCreateJobHandler(t *testing.T) {
	env := newHandlerEnv()
	e := env.seedEntity(t, "user_001")

	reqBody := fmt.Sprintf(`{
        "selectedEntityId": %q,
        "meetingType": "site_inspection",
        "dateTime": %q,
        "location": {"address": "12 Harbour Rd, Durban"},
        "requirements": {"tasks": ["take_photos"]}
    }`, e.ID, env.now.Add(48*time.Hour).Format(time.RFC3339))
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/new?userId=user_001", strings.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	env.handler.CreateJobHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), "site_inspection")
	require.Contains(t, string(body), `"status":"open"`)
}

func TestCancelJobHandlerNotOwned(t *testing.T) {
	env := newHandlerEnv()
	e := env.seedEntity(t, "user_001")
	job := env.seedJob(t, "user_001", e.ID)

	req := httptest.NewRequest(http.MethodPut, "/api/jobs/"+job.ID+"/cancel?userId=user_003", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"jobId": job.ID})
	w := httptest.NewRecorder()

	env.handler.CancelJobHandler(w, req)

	require.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestGetOpenJobsHandler(t *testing.T) {
	env := newHandlerEnv()
	e := env.seedEntity(t, "user_001")
	env.seedJob(t, "user_001", e.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?meeting_type=tender_briefing", nil)
	w := httptest.NewRecorder()

	env.handler.GetOpenJobsHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), "tender_briefing")
}

func TestGetOpenJobsHandlerRejectsBadFilter(t *testing.T) {
	env := newHandlerEnv()
	e := env.seedEntity(t, "user_001")
	env.seedJob(t, "user_001", e.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?meeting_type=board_meeting", nil)
	w := httptest.NewRecorder()

	env.handler.GetOpenJobsHandler(w, req)

	// an unknown filter value must not degrade to the unfiltered list
	require.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestGetJobHandlerIncludesQuotesForOwner(t *testing.T) {
	env := newHandlerEnv()
	e := env.seedEntity(t, "user_001")
	job := env.seedJob(t, "user_001", e.ID)
	env.seedQuote(t, "user_002", job.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID+"?userId=user_001", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"jobId": job.ID})
	w := httptest.NewRecorder()

	env.handler.GetJobHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"quotes"`)

	// посторонний не видит предложения
	req = httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID+"?userId=user_009", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"jobId": job.ID})
	w = httptest.NewRecorder()

	env.handler.GetJobHandler(w, req)

	res = w.Result()
	defer res.Body.Close()
	body, _ = io.ReadAll(res.Body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotContains(t, string(body), `"quotes"`)
}

func TestAcceptQuoteHandler(t *testing.T) {
	env := newHandlerEnv()
	e := env.seedEntity(t, "user_001")
	job := env.seedJob(t, "user_001", e.ID)
	q := env.seedQuote(t, "user_002", job.ID)

	req := httptest.NewRequest(http.MethodPut, "/api/quotes/"+q.ID+"/accept?userId=user_001", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"quoteId": q.ID})
	w := httptest.NewRecorder()

	env.handler.AcceptQuoteHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"assignment"`)
	require.Contains(t, string(body), `"in_progress"`)
	require.Contains(t, string(body), `"accepted"`)
}

func TestAcceptQuoteHandlerExpired(t *testing.T) {
	env := newHandlerEnv()
	e := env.seedEntity(t, "user_001")
	job := env.seedJob(t, "user_001", e.ID)
	q := env.seedQuote(t, "user_002", job.ID)

	env.now = env.now.Add(49 * time.Hour)

	req := httptest.NewRequest(http.MethodPut, "/api/quotes/"+q.ID+"/accept?userId=user_001", nil)
	req = testutils.WithChiURLParams(req, map[string]string{"quoteId": q.ID})
	w := httptest.NewRecorder()

	env.handler.AcceptQuoteHandler(w, req)

	require.Equal(t, http.StatusGone, w.Result().StatusCode)
}

func TestWithdrawQuoteHandlerTwice(t *testing.T) {
	env := newHandlerEnv()
	e := env.seedEntity(t, "user_001")
	job := env.seedJob(t, "user_001", e.ID)
	q := env.seedQuote(t, "user_002", job.ID)

	withdraw := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/quotes/"+q.ID+"/withdraw?userId=user_002", nil)
		req = testutils.WithChiURLParams(req, map[string]string{"quoteId": q.ID})
		w := httptest.NewRecorder()
		env.handler.WithdrawQuoteHandler(w, req)
		return w
	}

	require.Equal(t, http.StatusOK, withdraw().Result().StatusCode)
	require.Equal(t, http.StatusConflict, withdraw().Result().StatusCode)
}

func TestCompleteAssignmentHandler(t *testing.T) {
	env := newHandlerEnv()
	e := env.seedEntity(t, "user_001")
	job := env.seedJob(t, "user_001", e.ID)
	q := env.seedQuote(t, "user_002", job.ID)

	result, err := env.svc.Quotes.Accept(context.Background(), "user_001", q.ID)
	require.NoError(t, err)

	env.now = env.now.Add(80 * time.Hour) // встреча уже прошла

	complete := func() *httptest.ResponseRecorder {
		reqBody := `{"arrived": true, "tasksCompleted": ["sign_register"], "notes": "Done."}`
		req := httptest.NewRequest(http.MethodPut, "/api/assignments/"+result.Assignment.ID+"/complete?userId=user_002", strings.NewReader(reqBody))
		req.Header.Set("Content-Type", "application/json")
		req = testutils.WithChiURLParams(req, map[string]string{"assignmentId": result.Assignment.ID})
		w := httptest.NewRecorder()
		env.handler.CompleteAssignmentHandler(w, req)
		return w
	}

	w := complete()
	res := w.Result()
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"completed"`)

	// повторная отправка отчёта конфликтует
	require.Equal(t, http.StatusConflict, complete().Result().StatusCode)
}

func TestGetUserAssignmentsHandler(t *testing.T) {
	env := newHandlerEnv()
	e := env.seedEntity(t, "user_001")
	job := env.seedJob(t, "user_001", e.ID)
	q := env.seedQuote(t, "user_002", job.ID)

	_, err := env.svc.Quotes.Accept(context.Background(), "user_001", q.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/assignments/my?userId=user_002&status=upcoming", nil)
	w := httptest.NewRecorder()

	env.handler.GetUserAssignmentsHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"upcoming"`)
	require.Contains(t, string(body), job.ID)
}
