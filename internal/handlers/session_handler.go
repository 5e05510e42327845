package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/9A-Ayush/Mentor-Connect/internal/models"
	"github.com/9A-Ayush/Mentor-Connect/internal/repository"
	"github.com/9A-Ayush/Mentor-Connect/internal/services"
)

type SessionHandler struct {
	service sessionApplicationService
}

type sessionApplicationService interface {
	CreateSession(ctx context.Context, menteeID int64, input services.CreateSessionInput) (*models.Session, error)
	CheckAvailability(ctx context.Context, mentorID int64, start time.Time, durationMinutes int) (bool, error)
	ListSessions(ctx context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.Session, int, error)
	GetSession(ctx context.Context, actorID int64, role string, sessionID int64) (*models.Session, error)
	RespondToRequest(ctx context.Context, mentorID int64, sessionID int64, action string, message *string, meetingLink *string) (*models.Session, error)
	CancelSession(ctx context.Context, actorID int64, role string, sessionID int64, reason *string) (*models.Session, error)
	CompleteSession(ctx context.Context, sessionID int64, actualStart *time.Time, actualEnd *time.Time) (*models.Session, error)
	MarkNoShow(ctx context.Context, sessionID int64) (*models.Session, error)
	RateSession(ctx context.Context, menteeID int64, sessionID int64, rating int, review *string) (*models.Session, error)
}

func NewSessionHandler(service *services.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

type createSessionRequest struct {
	MentorID        int64               `json:"mentor_id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Topic           string              `json:"topic"`
	Agenda          []models.AgendaItem `json:"agenda"`
	ScheduledStart  string              `json:"scheduled_start"`
	DurationMinutes int                 `json:"duration_minutes"`
	Timezone        string              `json:"timezone"`
}

type respondRequest struct {
	Action      string  `json:"action"`
	Message     *string `json:"message"`
	MeetingLink *string `json:"meeting_link"`
}

type cancelRequest struct {
	Reason *string `json:"reason"`
}

type finalizeRequest struct {
	Outcome     string  `json:"outcome"`
	ActualStart *string `json:"actual_start"`
	ActualEnd   *string `json:"actual_end"`
}

type rateRequest struct {
	Rating int     `json:"rating"`
	Review *string `json:"review"`
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleMentee {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	menteeID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	scheduledStart, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ScheduledStart))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scheduled_start must be a valid RFC3339 timestamp"})
	}

	session, err := h.service.CreateSession(c.Context(), menteeID, services.CreateSessionInput{
		MentorID:        req.MentorID,
		Title:           req.Title,
		Description:     req.Description,
		Topic:           req.Topic,
		Agenda:          req.Agenda,
		ScheduledStart:  scheduledStart,
		DurationMinutes: req.DurationMinutes,
		Timezone:        req.Timezone,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

// CheckAvailability answers whether a mentor's slot is free right now. It is
// advisory; CreateSession re-checks inside its transaction.
func (h *SessionHandler) CheckAvailability(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != models.RoleMentee && role != models.RoleMentor) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	mentorID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || mentorID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mentor id"})
	}

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(c.Query("start")))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start must be a valid RFC3339 timestamp"})
	}
	durationMinutes := parsePositiveInt(c.Query("duration_minutes"), 0)
	if durationMinutes <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duration_minutes must be greater than 0"})
	}

	available, err := h.service.CheckAvailability(c.Context(), mentorID, start, durationMinutes)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"available": available})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != models.RoleMentee && role != models.RoleMentor) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	timeframe := strings.TrimSpace(c.Query("timeframe"))
	if timeframe != "" && timeframe != "upcoming" && timeframe != "past" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "timeframe must be upcoming or past"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	sessions, total, err := h.service.ListSessions(c.Context(), actorID, role, repository.SessionListFilter{
		Status:    models.SessionStatus(strings.TrimSpace(c.Query("status"))),
		Timeframe: timeframe,
		Offset:    (page - 1) * limit,
		Limit:     limit,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"sessions":   sessions,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != models.RoleMentee && role != models.RoleMentor) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.GetSession(c.Context(), actorID, role, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) RespondToRequest(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleMentor {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	mentorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req respondRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	action := strings.ToLower(strings.TrimSpace(req.Action))
	if action != services.ActionApprove && action != services.ActionDecline {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "action must be approve or decline"})
	}

	session, err := h.service.RespondToRequest(c.Context(), mentorID, sessionID, action, req.Message, req.MeetingLink)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) CancelSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || (role != models.RoleMentee && role != models.RoleMentor) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req cancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}

	session, err := h.service.CancelSession(c.Context(), actorID, role, sessionID, req.Reason)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

// FinalizeSession records the operator's outcome for an elapsed session:
// completed (with optional actual start/end) or no-show.
func (h *SessionHandler) FinalizeSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleOperator {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req finalizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var session *models.Session
	switch strings.ToLower(strings.TrimSpace(req.Outcome)) {
	case string(models.StatusCompleted):
		actualStart, err := parseOptionalTime(req.ActualStart)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "actual_start must be a valid RFC3339 timestamp"})
		}
		actualEnd, err := parseOptionalTime(req.ActualEnd)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "actual_end must be a valid RFC3339 timestamp"})
		}
		session, err = h.service.CompleteSession(c.Context(), sessionID, actualStart, actualEnd)
		if err != nil {
			return mapSessionError(c, err)
		}
	case string(models.StatusNoShow):
		session, err = h.service.MarkNoShow(c.Context(), sessionID)
		if err != nil {
			return mapSessionError(c, err)
		}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "outcome must be completed or no-show"})
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) RateSession(c *fiber.Ctx) error {
	role, ok := c.Locals("role").(string)
	if !ok || role != models.RoleMentee {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	menteeID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := parseSessionID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req rateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "rating must be between 1 and 5"})
	}

	session, err := h.service.RateSession(c.Context(), menteeID, sessionID, req.Rating, req.Review)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func parseActorID(c *fiber.Ctx) (int64, error) {
	idValue := c.Locals("user_id")
	idStr, ok := idValue.(string)
	if !ok {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(idStr, 10, 64)
}

func parseSessionID(c *fiber.Ctx) (int64, error) {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return 0, strconv.ErrSyntax
	}
	return sessionID, nil
}

func parseOptionalTime(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*value))
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func mapSessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrConflict):
		body := fiber.Map{"error": "Requested time conflicts with another session"}
		var conflict *services.ConflictError
		if errors.As(err, &conflict) {
			body["conflicting_session_id"] = conflict.SessionID
		}
		return c.Status(fiber.StatusConflict).JSON(body)
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrCancellationWindow),
		errors.Is(err, services.ErrAlreadyRated),
		errors.Is(err, services.ErrNotRatable):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrMentorNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mentor not found"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
