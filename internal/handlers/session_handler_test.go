package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/9A-Ayush/Mentor-Connect/internal/models"
	"github.com/9A-Ayush/Mentor-Connect/internal/repository"
	"github.com/9A-Ayush/Mentor-Connect/internal/services"
)

type stubSessionService struct {
	createResult   *models.Session
	createErr      error
	listResult     []models.Session
	listTotal      int
	listErr        error
	getResult      *models.Session
	getErr         error
	respondResult  *models.Session
	respondErr     error
	cancelResult   *models.Session
	cancelErr      error
	finalizeResult *models.Session
	finalizeErr    error
	rateResult     *models.Session
	rateErr        error
	available      bool
	availableErr   error

	lastActorID     int64
	lastRole        string
	lastSessionID   int64
	lastAction      string
	lastRating      int
	lastCreateInput services.CreateSessionInput
	lastListFilter  repository.SessionListFilter
	noShowCalled    bool

	lastAvailabilityStart    time.Time
	lastAvailabilityDuration int
}

func (s *stubSessionService) CreateSession(_ context.Context, menteeID int64, input services.CreateSessionInput) (*models.Session, error) {
	s.lastActorID = menteeID
	s.lastCreateInput = input
	return s.createResult, s.createErr
}

func (s *stubSessionService) CheckAvailability(_ context.Context, mentorID int64, start time.Time, durationMinutes int) (bool, error) {
	s.lastActorID = mentorID
	s.lastAvailabilityStart = start
	s.lastAvailabilityDuration = durationMinutes
	return s.available, s.availableErr
}

func (s *stubSessionService) ListSessions(_ context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.Session, int, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastListFilter = filter
	return s.listResult, s.listTotal, s.listErr
}

func (s *stubSessionService) GetSession(_ context.Context, actorID int64, role string, sessionID int64) (*models.Session, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	return s.getResult, s.getErr
}

func (s *stubSessionService) RespondToRequest(_ context.Context, mentorID int64, sessionID int64, action string, _ *string, _ *string) (*models.Session, error) {
	s.lastActorID = mentorID
	s.lastSessionID = sessionID
	s.lastAction = action
	return s.respondResult, s.respondErr
}

func (s *stubSessionService) CancelSession(_ context.Context, actorID int64, role string, sessionID int64, _ *string) (*models.Session, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	return s.cancelResult, s.cancelErr
}

func (s *stubSessionService) CompleteSession(_ context.Context, sessionID int64, _ *time.Time, _ *time.Time) (*models.Session, error) {
	s.lastSessionID = sessionID
	return s.finalizeResult, s.finalizeErr
}

func (s *stubSessionService) MarkNoShow(_ context.Context, sessionID int64) (*models.Session, error) {
	s.lastSessionID = sessionID
	s.noShowCalled = true
	return s.finalizeResult, s.finalizeErr
}

func (s *stubSessionService) RateSession(_ context.Context, menteeID int64, sessionID int64, rating int, _ *string) (*models.Session, error) {
	s.lastActorID = menteeID
	s.lastSessionID = sessionID
	s.lastRating = rating
	return s.rateResult, s.rateErr
}

func newTestApp(service *stubSessionService, role, userID string) *fiber.App {
	handler := &SessionHandler{service: service}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Post("/api/v1/sessions/book", handler.CreateSession)
	app.Get("/api/v1/sessions", handler.ListSessions)
	app.Get("/api/v1/sessions/:id", handler.GetSession)
	app.Put("/api/v1/sessions/:id/respond", handler.RespondToRequest)
	app.Post("/api/v1/sessions/:id/cancel", handler.CancelSession)
	app.Post("/api/v1/sessions/:id/finalize", handler.FinalizeSession)
	app.Post("/api/v1/sessions/:id/rate", handler.RateSession)
	app.Get("/api/v1/mentors/:id/availability", handler.CheckAvailability)
	return app
}

func TestCreateSessionReturnsCreatedSession(t *testing.T) {
	service := &stubSessionService{
		createResult: &models.Session{
			ID:              91,
			MenteeID:        42,
			MentorID:        7,
			Status:          models.StatusPending,
			DurationMinutes: 60,
		},
	}
	app := newTestApp(service, models.RoleMentee, "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/book", strings.NewReader(`{
		"mentor_id": 7,
		"title": "Intro to Go concurrency",
		"topic": "golang",
		"scheduled_start": "2027-03-15T09:00:00Z",
		"duration_minutes": 60,
		"agenda": [{"text": "channels", "done": false}]
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 {
		t.Fatalf("expected actor id 42, got %d", service.lastActorID)
	}
	if service.lastCreateInput.MentorID != 7 {
		t.Fatalf("expected mentor id 7, got %d", service.lastCreateInput.MentorID)
	}
	if len(service.lastCreateInput.Agenda) != 1 || service.lastCreateInput.Agenda[0].Text != "channels" {
		t.Fatalf("unexpected agenda: %+v", service.lastCreateInput.Agenda)
	}
}

func TestCreateSessionForbiddenForMentorRole(t *testing.T) {
	service := &stubSessionService{}
	app := newTestApp(service, models.RoleMentor, "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/book", strings.NewReader(`{"mentor_id": 7}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestCreateSessionReturnsConflictWithCollidingID(t *testing.T) {
	service := &stubSessionService{
		createErr: &services.ConflictError{SessionID: 55, ScheduledStart: time.Date(2027, 3, 15, 9, 0, 0, 0, time.UTC)},
	}
	app := newTestApp(service, models.RoleMentee, "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/book", strings.NewReader(`{
		"mentor_id": 7,
		"title": "Intro",
		"scheduled_start": "2027-03-15T09:30:00Z",
		"duration_minutes": 60
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var payload struct {
		ConflictingSessionID int64 `json:"conflicting_session_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.ConflictingSessionID != 55 {
		t.Fatalf("expected conflicting session 55, got %d", payload.ConflictingSessionID)
	}
}

func TestCheckAvailabilityReturnsSlotState(t *testing.T) {
	service := &stubSessionService{available: true}
	app := newTestApp(service, models.RoleMentee, "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mentors/7/availability?start=2027-03-15T09:00:00Z&duration_minutes=60", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActorID != 7 {
		t.Fatalf("expected mentor id 7, got %d", service.lastActorID)
	}
	want := time.Date(2027, 3, 15, 9, 0, 0, 0, time.UTC)
	if !service.lastAvailabilityStart.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, service.lastAvailabilityStart)
	}
	if service.lastAvailabilityDuration != 60 {
		t.Fatalf("expected duration 60, got %d", service.lastAvailabilityDuration)
	}

	body, _ := io.ReadAll(resp.Body)
	var payload struct {
		Available bool `json:"available"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !payload.Available {
		t.Fatal("expected available=true")
	}
}

func TestCheckAvailabilityRejectsBadTimestamp(t *testing.T) {
	service := &stubSessionService{}
	app := newTestApp(service, models.RoleMentee, "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mentors/7/availability?start=tomorrow&duration_minutes=60", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if service.lastAvailabilityDuration != 0 {
		t.Fatal("expected service not to be called")
	}
}

func TestListSessionsPassesFilterAndPagination(t *testing.T) {
	service := &stubSessionService{
		listResult: []models.Session{{ID: 5, Status: models.StatusApproved}},
		listTotal:  12,
	}
	app := newTestApp(service, models.RoleMentor, "9")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?status=approved&timeframe=upcoming&page=2&limit=5", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastRole != models.RoleMentor {
		t.Fatalf("expected mentor role, got %q", service.lastRole)
	}
	if service.lastListFilter.Status != models.StatusApproved || service.lastListFilter.Timeframe != "upcoming" {
		t.Fatalf("unexpected filter: %+v", service.lastListFilter)
	}
	if service.lastListFilter.Offset != 5 || service.lastListFilter.Limit != 5 {
		t.Fatalf("unexpected paging: offset=%d limit=%d", service.lastListFilter.Offset, service.lastListFilter.Limit)
	}

	body, _ := io.ReadAll(resp.Body)
	var payload struct {
		Pagination models.PaginationMeta `json:"pagination"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.Pagination.Total != 12 || payload.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected pagination meta: %+v", payload.Pagination)
	}
}

func TestGetSessionReturnsNotFound(t *testing.T) {
	service := &stubSessionService{getErr: pgx.ErrNoRows}
	app := newTestApp(service, models.RoleMentee, "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/999", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRespondRejectsUnknownAction(t *testing.T) {
	service := &stubSessionService{}
	app := newTestApp(service, models.RoleMentor, "7")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/5/respond", strings.NewReader(`{"action": "confirm"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRespondApproveMapsIllegalTransitionToConflict(t *testing.T) {
	service := &stubSessionService{respondErr: services.ErrInvalidStateTransition}
	app := newTestApp(service, models.RoleMentor, "7")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/5/respond", strings.NewReader(`{"action": "approve"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if service.lastAction != services.ActionApprove {
		t.Fatalf("expected approve action, got %q", service.lastAction)
	}
}

func TestCancelSessionMapsPolicyViolation(t *testing.T) {
	service := &stubSessionService{cancelErr: services.ErrCancellationWindow}
	app := newTestApp(service, models.RoleMentee, "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/cancel", strings.NewReader(`{"reason": "can't make it"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestFinalizeRequiresOperatorRole(t *testing.T) {
	service := &stubSessionService{}
	app := newTestApp(service, models.RoleMentor, "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/finalize", strings.NewReader(`{"outcome": "completed"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestFinalizeNoShow(t *testing.T) {
	service := &stubSessionService{
		finalizeResult: &models.Session{ID: 5, Status: models.StatusNoShow},
	}
	app := newTestApp(service, models.RoleOperator, "1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/finalize", strings.NewReader(`{"outcome": "no-show"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !service.noShowCalled {
		t.Fatal("expected MarkNoShow to be called")
	}
}

func TestRateSessionMapsAlreadyRatedToPolicy(t *testing.T) {
	service := &stubSessionService{rateErr: services.ErrAlreadyRated}
	app := newTestApp(service, models.RoleMentee, "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/rate", strings.NewReader(`{"rating": 4}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestRateSessionRejectsOutOfRangeRating(t *testing.T) {
	service := &stubSessionService{}
	app := newTestApp(service, models.RoleMentee, "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/rate", strings.NewReader(`{"rating": 9}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if service.lastRating != 0 {
		t.Fatalf("expected service not to be called, got rating %d", service.lastRating)
	}
}
