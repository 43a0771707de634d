package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/api/api"
	"eventhub/internal/auth"
	"eventhub/internal/model"
	"eventhub/internal/repo"
	"eventhub/internal/service"
)

type fakeRepo struct {
	mu     sync.Mutex
	events []model.Event
	regs   []model.Registration
	admins map[string]model.AdminUser

	bulkErr             error
	failRowDeletes      map[string]error
	registrationTxCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{admins: map[string]model.AdminUser{}, failRowDeletes: map[string]error{}}
}

func (f *fakeRepo) CreateEvent(_ context.Context, e *model.Event) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("event-%d", len(f.events)+1)
	ev := *e
	ev.ID = id
	f.events = append(f.events, ev)
	return id, nil
}

func (f *fakeRepo) GetEventByID(_ context.Context, id string) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.ID == id {
			ev := e
			return &ev, nil
		}
	}
	return nil, repo.ErrEventNotFound
}

func (f *fakeRepo) GetAllEvents(_ context.Context) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Event(nil), f.events...), nil
}

func (f *fakeRepo) UpdateEvent(_ context.Context, e *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == e.ID {
			updated := *e
			f.events[i] = updated
			return nil
		}
	}
	return repo.ErrEventNotFound
}

func (f *fakeRepo) DeleteEvent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return repo.ErrEventNotFound
}

func (f *fakeRepo) CreateRegistrationTx(_ context.Context, reg *model.Registration, eventID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registrationTxCalls++
	for i := range f.events {
		if f.events[i].ID == eventID {
			if f.events[i].Registered >= f.events[i].Capacity {
				return "", repo.ErrEventFull
			}
			id := fmt.Sprintf("reg-%d", len(f.regs)+1)
			r := *reg
			r.ID = id
			f.regs = append(f.regs, r)
			f.events[i].Registered++
			return id, nil
		}
	}
	return "", repo.ErrEventNotFound
}

func (f *fakeRepo) GetAllRegistrations(_ context.Context) ([]model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Registration(nil), f.regs...), nil
}

func (f *fakeRepo) GetRegistrationByID(_ context.Context, id string) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.regs {
		if r.ID == id {
			reg := r
			return &reg, nil
		}
	}
	return nil, repo.ErrRegistrationNotFound
}

func (f *fakeRepo) UpdateRegistrationStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.regs {
		if f.regs[i].ID == id {
			f.regs[i].Status = status
			return nil
		}
	}
	return repo.ErrRegistrationNotFound
}

func (f *fakeRepo) DeleteRegistration(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failRowDeletes[id]; ok {
		return err
	}
	for i := range f.regs {
		if f.regs[i].ID == id {
			f.regs = append(f.regs[:i], f.regs[i+1:]...)
			return nil
		}
	}
	return repo.ErrRegistrationNotFound
}

func (f *fakeRepo) DeleteAllRegistrations(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return 0, f.bulkErr
	}
	n := int64(len(f.regs))
	f.regs = nil
	return n, nil
}

func (f *fakeRepo) CreateAdminUser(_ context.Context, u *model.AdminUser) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.admins[u.Email]; ok {
		return "", repo.ErrDuplicateAdmin
	}
	id := fmt.Sprintf("admin-%d", len(f.admins)+1)
	f.admins[u.Email] = model.AdminUser{ID: id, Email: u.Email, PasswordHash: u.PasswordHash}
	return id, nil
}

func (f *fakeRepo) GetAdminUserByEmail(_ context.Context, email string) (*model.AdminUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.admins[email]
	if !ok {
		return nil, repo.ErrAdminNotFound
	}
	return &u, nil
}

func (f *fakeRepo) MigrateUp(string) error   { return nil }
func (f *fakeRepo) MigrateDown(string) error { return nil }

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *fakePublisher) Publish(message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return nil
}

type envelope struct {
	Status string `json:"status"`
	Error  *struct {
		Code string `json:"code"`
		Desc string `json:"desc"`
	} `json:"error"`
	Data json.RawMessage `json:"data"`
}

type testApp struct {
	app    *ginext.Engine
	repo   *fakeRepo
	pub    *fakePublisher
	tokens *auth.Manager
}

func newTestApp(fr *fakeRepo) *testApp {
	log := zerolog.Nop()
	pub := &fakePublisher{}
	tokens := auth.NewManager("test-secret", time.Hour)
	svc := service.NewService(fr, &log, pub, tokens)
	app := api.NewRouters(&api.Routers{Service: svc, Tokens: tokens})
	return &testApp{app: app, repo: fr, pub: pub, tokens: tokens}
}

func (ta *testApp) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(payload)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ta.app.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (ta *testApp) adminToken(t *testing.T) string {
	t.Helper()
	token, err := ta.tokens.IssueToken("admin@example.com")
	require.NoError(t, err)
	return token
}

func freeEvent() model.Event {
	return model.Event{
		ID:        "event-1",
		Title:     "Open Source Meetup",
		EventType: "Webinar",
		Date:      "2025-10-01",
		Time:      "18:00",
		Location:  "Online",
		Price:     model.Price{Free: true},
		Capacity:  100,
	}
}

func registerBody() map[string]any {
	return map[string]any{
		"full_name":      "Alice Smith",
		"email":          "alice@example.com",
		"phone":          "+1234567890",
		"agree_to_terms": true,
	}
}

func TestRegisterRejectsWithoutTerms(t *testing.T) {
	fr := newFakeRepo()
	fr.events = []model.Event{freeEvent()}
	ta := newTestApp(fr)

	body := registerBody()
	body["agree_to_terms"] = false

	w, env := ta.do(t, http.MethodPost, "/v1/events/event-1/register", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TERMS_NOT_ACCEPTED", env.Error.Code)
	// No store request was issued.
	assert.Equal(t, 0, fr.registrationTxCalls)
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	fr := newFakeRepo()
	fr.events = []model.Event{freeEvent()}
	ta := newTestApp(fr)

	body := registerBody()
	body["phone"] = ""

	w, env := ta.do(t, http.MethodPost, "/v1/events/event-1/register", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FIELD_INCORRECT", env.Error.Code)
	assert.Equal(t, 0, fr.registrationTxCalls)
}

func TestRegisterDerivesTicketType(t *testing.T) {
	fr := newFakeRepo()
	paid := freeEvent()
	paid.ID = "event-2"
	paid.Title = "Paid Conference"
	paid.Price = model.Price{Amount: 250}
	fr.events = []model.Event{freeEvent(), paid}
	ta := newTestApp(fr)

	w, env := ta.do(t, http.MethodPost, "/v1/events/event-1/register", "", registerBody())
	require.Equal(t, http.StatusCreated, w.Code)

	var confirmation map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &confirmation))
	assert.Equal(t, "free", confirmation["ticket_type"])
	assert.Equal(t, "Open Source Meetup", confirmation["event_title"])
	assert.Equal(t, "Webinar", confirmation["event_type"])

	w, env = ta.do(t, http.MethodPost, "/v1/events/event-2/register", "", registerBody())
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &confirmation))
	assert.Equal(t, "paid", confirmation["ticket_type"])

	// Each submission claimed a spot and queued a confirmation email.
	assert.Equal(t, 1, fr.events[0].Registered)
	assert.Equal(t, 1, fr.events[1].Registered)
	assert.Len(t, ta.pub.messages, 2)
}

func TestRegisterSoldOutEvent(t *testing.T) {
	fr := newFakeRepo()
	full := freeEvent()
	full.Registered = full.Capacity
	fr.events = []model.Event{full}
	ta := newTestApp(fr)

	w, env := ta.do(t, http.MethodPost, "/v1/events/event-1/register", "", registerBody())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "EVENT_FULL", env.Error.Code)
}

func TestCatalogFilterAndPagination(t *testing.T) {
	fr := newFakeRepo()
	for i := 0; i < 15; i++ {
		e := freeEvent()
		e.ID = fmt.Sprintf("event-%d", i+1)
		e.Title = fmt.Sprintf("Webinar #%d", i+1)
		fr.events = append(fr.events, e)
	}
	other := freeEvent()
	other.ID = "event-99"
	other.Title = "Campus Run"
	other.EventType = "Sports"
	fr.events = append(fr.events, other)
	ta := newTestApp(fr)

	w, env := ta.do(t, http.MethodGet, "/v1/events?category=Webinar", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Events     []json.RawMessage `json:"events"`
		Total      int               `json:"total"`
		Page       int               `json:"page"`
		TotalPages int               `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 15, list.Total)
	assert.Equal(t, 2, list.TotalPages)
	assert.Len(t, list.Events, 12)

	w, env = ta.do(t, http.MethodGet, "/v1/events?category=Webinar&page=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Events, 3)

	w, env = ta.do(t, http.MethodGet, "/v1/events?query=campus", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 1, list.Total)
}

func TestAdminRoutesRequireSession(t *testing.T) {
	ta := newTestApp(newFakeRepo())

	w, env := ta.do(t, http.MethodGet, "/v1/admin/registrations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w, _ = ta.do(t, http.MethodGet, "/v1/admin/registrations", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeleteEventLeavesRegistrations(t *testing.T) {
	fr := newFakeRepo()
	fr.events = []model.Event{freeEvent()}
	fr.regs = []model.Registration{
		{ID: "reg-1", FullName: "Alice Smith", Email: "alice@example.com", EventType: "Webinar"},
	}
	ta := newTestApp(fr)
	token := ta.adminToken(t)

	w, _ := ta.do(t, http.MethodDelete, "/v1/admin/events/event-1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The event is gone from the catalog...
	w, env := ta.do(t, http.MethodGet, "/v1/events", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 0, list.Total)

	// ...but its registrations survive with their copied label.
	w, env = ta.do(t, http.MethodGet, "/v1/admin/registrations", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var regList struct {
		Registrations []model.Registration `json:"registrations"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &regList))
	require.Len(t, regList.Registrations, 1)
	assert.Equal(t, "Webinar", regList.Registrations[0].EventType)
}

func TestUpdateRegistrationStatus(t *testing.T) {
	fr := newFakeRepo()
	fr.regs = []model.Registration{
		{ID: "reg-1", FullName: "Alice Smith", Email: "alice@example.com", Status: model.StatusConfirmed},
	}
	ta := newTestApp(fr)
	token := ta.adminToken(t)

	w, _ := ta.do(t, http.MethodPatch, "/v1/admin/registrations/reg-1/status", token,
		map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusCancelled, fr.regs[0].Status)

	// Any state is reachable from any other.
	w, _ = ta.do(t, http.MethodPatch, "/v1/admin/registrations/reg-1/status", token,
		map[string]any{"status": "pending"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusPending, fr.regs[0].Status)

	w, env := ta.do(t, http.MethodPatch, "/v1/admin/registrations/reg-1/status", token,
		map[string]any{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
}

func seedRegistrations(fr *fakeRepo, n int) {
	for i := 0; i < n; i++ {
		fr.regs = append(fr.regs, model.Registration{
			ID:       fmt.Sprintf("reg-%d", i+1),
			FullName: fmt.Sprintf("Attendee %d", i+1),
			Email:    fmt.Sprintf("a%d@example.com", i+1),
		})
	}
}

func TestDeleteAllRegistrationsBulk(t *testing.T) {
	fr := newFakeRepo()
	seedRegistrations(fr, 3)
	ta := newTestApp(fr)

	w, env := ta.do(t, http.MethodDelete, "/v1/admin/registrations", ta.adminToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Deleted  int  `json:"deleted"`
		Fallback bool `json:"fallback"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, 3, resp.Deleted)
	assert.False(t, resp.Fallback)
	assert.Empty(t, fr.regs)
}

func TestDeleteAllRegistrationsFallback(t *testing.T) {
	fr := newFakeRepo()
	seedRegistrations(fr, 5)
	fr.bulkErr = &pq.Error{Code: "42501"}
	ta := newTestApp(fr)

	w, env := ta.do(t, http.MethodDelete, "/v1/admin/registrations", ta.adminToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Deleted  int  `json:"deleted"`
		Fallback bool `json:"fallback"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, 5, resp.Deleted)
	assert.True(t, resp.Fallback)
	assert.Empty(t, fr.regs)
}

func TestDeleteAllRegistrationsFallbackPartialFailure(t *testing.T) {
	fr := newFakeRepo()
	seedRegistrations(fr, 5)
	fr.bulkErr = &pq.Error{Code: "42501"}
	fr.failRowDeletes["reg-3"] = &pq.Error{Code: "42501"}
	ta := newTestApp(fr)

	// One failing row makes the whole operation a failure, even though the
	// other four deletes went through.
	w, env := ta.do(t, http.MethodDelete, "/v1/admin/registrations", ta.adminToken(t), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PERMISSION_DENIED", env.Error.Code)
}

func TestExportRegistrations(t *testing.T) {
	fr := newFakeRepo()
	ta := newTestApp(fr)
	token := ta.adminToken(t)

	w, env := ta.do(t, http.MethodGet, "/v1/admin/registrations/export", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOTHING_TO_EXPORT", env.Error.Code)

	seedRegistrations(fr, 2)
	w, _ = ta.do(t, http.MethodGet, "/v1/admin/registrations/export", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "EventHub_Registrations_")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, w.Body.Len())
}

func TestSignUpAndLogin(t *testing.T) {
	fr := newFakeRepo()
	ta := newTestApp(fr)

	creds := map[string]any{"email": "admin@example.com", "password": "secret123"}

	w, env := ta.do(t, http.MethodPost, "/v1/auth/signup", "", creds)
	require.Equal(t, http.StatusCreated, w.Code)
	var tokenResp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tokenResp))
	assert.NotEmpty(t, tokenResp.Token)

	// Duplicate signup is rejected.
	w, _ = ta.do(t, http.MethodPost, "/v1/auth/signup", "", creds)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Wrong password is indistinguishable from an unknown account.
	w, _ = ta.do(t, http.MethodPost, "/v1/auth/login", "",
		map[string]any{"email": "admin@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = ta.do(t, http.MethodPost, "/v1/auth/login", "",
		map[string]any{"email": "nobody@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = ta.do(t, http.MethodPost, "/v1/auth/login", "", creds)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &tokenResp))

	// The issued token opens the dashboard.
	w, _ = ta.do(t, http.MethodGet, "/v1/admin/stats", tokenResp.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStats(t *testing.T) {
	fr := newFakeRepo()
	fr.events = []model.Event{freeEvent()}
	fr.regs = []model.Registration{
		{ID: "reg-1", TicketType: model.TicketPaid},
		{ID: "reg-2", TicketType: model.TicketPaid},
		{ID: "reg-3", TicketType: model.TicketFree},
	}
	ta := newTestApp(fr)

	w, env := ta.do(t, http.MethodGet, "/v1/admin/stats", ta.adminToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats struct {
		TotalEvents        int     `json:"total_events"`
		TotalRegistrations int     `json:"total_registrations"`
		Revenue            float64 `json:"revenue"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.TotalEvents)
	assert.Equal(t, 3, stats.TotalRegistrations)
	assert.Equal(t, float64(100), stats.Revenue)
}

func TestContactQueuesMailJob(t *testing.T) {
	ta := newTestApp(newFakeRepo())

	w, _ := ta.do(t, http.MethodPost, "/v1/contact", "", map[string]any{
		"name":    "Visitor",
		"email":   "visitor@example.com",
		"subject": "Venue question",
		"message": "Is parking available?",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ta.pub.messages, 1)

	var job map[string]any
	require.NoError(t, json.Unmarshal(ta.pub.messages[0], &job))
	assert.Equal(t, "contact", job["kind"])
	assert.Equal(t, "visitor@example.com", job["from_email"])
}
