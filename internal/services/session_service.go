package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/9A-Ayush/Mentor-Connect/internal/models"
	"github.com/9A-Ayush/Mentor-Connect/internal/repository"
	"github.com/9A-Ayush/Mentor-Connect/pkg/utils"
)

const (
	minDurationMinutes = 15
	maxDurationMinutes = 240
)

const (
	ActionApprove = "approve"
	ActionDecline = "decline"
)

// ConflictError reports the committed session already occupying the
// requested slot. errors.Is(err, ErrConflict) matches it.
type ConflictError struct {
	SessionID      int64
	ScheduledStart time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("scheduling conflict with session %d at %s",
		e.SessionID, e.ScheduledStart.Format(time.RFC3339))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type mentorProfileReader interface {
	GetByUserID(ctx context.Context, userID int64) (*models.MentorProfile, error)
}

type SessionService struct {
	db          *pgxpool.Pool
	sessionRepo *repository.SessionRepository
	userRepo    userReader
	mentorRepo  mentorProfileReader
	notifier    Notifier
}

func NewSessionService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	userRepo userReader,
	mentorRepo mentorProfileReader,
	notifier Notifier,
) *SessionService {
	return &SessionService{
		db:          db,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		mentorRepo:  mentorRepo,
		notifier:    notifier,
	}
}

type CreateSessionInput struct {
	MentorID        int64
	Title           string
	Description     string
	Topic           string
	Agenda          []models.AgendaItem
	ScheduledStart  time.Time
	DurationMinutes int
	Timezone        string
}

// CreateSession books a pending session. The overlap check and the insert
// run in one transaction under a per-mentor advisory lock, so two
// near-simultaneous requests for the same slot cannot both pass the check.
func (s *SessionService) CreateSession(
	ctx context.Context,
	menteeID int64,
	input CreateSessionInput,
) (*models.Session, error) {
	if input.MentorID <= 0 || menteeID == input.MentorID {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrInvalidInput
	}
	if input.DurationMinutes < minDurationMinutes || input.DurationMinutes > maxDurationMinutes {
		return nil, ErrInvalidInput
	}
	if !input.ScheduledStart.After(time.Now()) {
		return nil, ErrInvalidInput
	}
	for _, item := range input.Agenda {
		if strings.TrimSpace(item.Text) == "" {
			return nil, ErrInvalidInput
		}
	}
	if strings.TrimSpace(input.Timezone) == "" {
		input.Timezone = "UTC"
	}

	mentor, err := s.userRepo.GetByID(ctx, input.MentorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMentorNotFound
		}
		return nil, err
	}
	if mentor.Role != models.RoleMentor {
		return nil, ErrMentorNotFound
	}

	profile, err := s.mentorRepo.GetByUserID(ctx, input.MentorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMentorNotFound
		}
		return nil, err
	}
	if !profile.IsActive {
		return nil, ErrMentorNotFound
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)

	// Serializes bookings per mentor for the lifetime of this transaction.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", input.MentorID); err != nil {
		return nil, err
	}

	colliding, err := txSessionRepo.FindOverlapping(
		ctx,
		input.MentorID,
		input.ScheduledStart.UTC(),
		input.DurationMinutes,
	)
	if err != nil {
		return nil, err
	}
	if colliding != nil {
		return nil, &ConflictError{
			SessionID:      colliding.ID,
			ScheduledStart: colliding.ScheduledStart,
		}
	}

	session, err := txSessionRepo.Create(ctx, repository.CreateSessionInput{
		MenteeID:        menteeID,
		MentorID:        input.MentorID,
		Title:           strings.TrimSpace(input.Title),
		Description:     input.Description,
		Topic:           input.Topic,
		Agenda:          input.Agenda,
		ScheduledStart:  input.ScheduledStart.UTC(),
		DurationMinutes: input.DurationMinutes,
		Timezone:        input.Timezone,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.notifier.SessionRequested(session)
	return session, nil
}

// CheckAvailability is advisory only; CreateSession re-checks inside its
// transaction.
func (s *SessionService) CheckAvailability(
	ctx context.Context,
	mentorID int64,
	start time.Time,
	durationMinutes int,
) (bool, error) {
	colliding, err := s.sessionRepo.FindOverlapping(ctx, mentorID, start.UTC(), durationMinutes)
	if err != nil {
		return false, err
	}
	return colliding == nil, nil
}

func (s *SessionService) ListSessions(
	ctx context.Context,
	actorID int64,
	role string,
	filter repository.SessionListFilter,
) ([]models.Session, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, ErrInvalidInput
	}
	filter.ActorID = actorID
	filter.Role = role
	return s.sessionRepo.List(ctx, filter)
}

func (s *SessionService) GetSession(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}
	return session, nil
}

// RespondToRequest is the mentor's answer to a pending booking: approve
// (optionally with a meeting link, generated when absent) or decline.
func (s *SessionService) RespondToRequest(
	ctx context.Context,
	mentorID int64,
	sessionID int64,
	action string,
	message *string,
	meetingLink *string,
) (*models.Session, error) {
	var next models.SessionStatus
	switch action {
	case ActionApprove:
		next = models.StatusApproved
	case ActionDecline:
		next = models.StatusDeclined
	default:
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := validateTransition(session, ActorMentor, mentorID, next, time.Now()); err != nil {
		return nil, err
	}

	previous := session.Status
	var updated *models.Session
	if next == models.StatusApproved {
		link := ""
		if meetingLink != nil {
			link = strings.TrimSpace(*meetingLink)
		}
		if link == "" {
			link = utils.NewMeetingLink()
		}
		updated, err = s.sessionRepo.Approve(ctx, sessionID, link, message)
	} else {
		updated, err = s.sessionRepo.Decline(ctx, sessionID, message)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}

	s.notifier.SessionTransitioned(updated, previous)
	return updated, nil
}

// CancelSession applies the cancellation policy through the state machine:
// committed sessions only, and more than two hours before the start.
func (s *SessionService) CancelSession(
	ctx context.Context,
	actorID int64,
	role string,
	sessionID int64,
	reason *string,
) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}

	actor := Actor(role)
	if err := validateTransition(session, actor, actorID, models.StatusCancelled, time.Now()); err != nil {
		return nil, err
	}

	updated, err := s.sessionRepo.Cancel(ctx, sessionID, session.Status, role, reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}

	s.notifier.SessionTransitioned(updated, session.Status)
	return updated, nil
}

// CompleteSession is operator-triggered; actual start/end are recorded when
// the operator supplies them.
func (s *SessionService) CompleteSession(
	ctx context.Context,
	sessionID int64,
	actualStart *time.Time,
	actualEnd *time.Time,
) (*models.Session, error) {
	return s.finalize(ctx, sessionID, models.StatusCompleted, actualStart, actualEnd)
}

func (s *SessionService) MarkNoShow(
	ctx context.Context,
	sessionID int64,
) (*models.Session, error) {
	return s.finalize(ctx, sessionID, models.StatusNoShow, nil, nil)
}

func (s *SessionService) finalize(
	ctx context.Context,
	sessionID int64,
	outcome models.SessionStatus,
	actualStart *time.Time,
	actualEnd *time.Time,
) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := validateTransition(session, ActorOperator, 0, outcome, time.Now()); err != nil {
		return nil, err
	}

	var updated *models.Session
	if outcome == models.StatusCompleted {
		updated, err = s.sessionRepo.Complete(ctx, sessionID, actualStart, actualEnd)
	} else {
		updated, err = s.sessionRepo.MarkNoShow(ctx, sessionID)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}

	s.notifier.SessionTransitioned(updated, session.Status)
	return updated, nil
}

// RateSession records the mentee's one-shot feedback and rebuilds the
// mentor's reputation aggregate in the same transaction. The advisory lock
// serializes recomputes per mentor, so concurrent ratings of different
// sessions cannot lose updates.
func (s *SessionService) RateSession(
	ctx context.Context,
	menteeID int64,
	sessionID int64,
	rating int,
	review *string,
) (*models.Session, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txMentorRepo := repository.NewMentorProfileRepository(tx)

	session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := validateRating(session, menteeID, rating); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", session.MentorID); err != nil {
		return nil, err
	}

	updated, err := txSessionRepo.SetRating(ctx, sessionID, rating, review)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyRated
		}
		return nil, err
	}

	if _, err := txMentorRepo.RecomputeReputation(ctx, session.MentorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.notifier.SessionRated(updated)
	return updated, nil
}

func canAccessSession(role string, actorID int64, session *models.Session) bool {
	switch role {
	case models.RoleMentee:
		return session.MenteeID == actorID
	case models.RoleMentor:
		return session.MentorID == actorID
	case models.RoleOperator:
		return true
	}
	return false
}
