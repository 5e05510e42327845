package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/9A-Ayush/Mentor-Connect/internal/models"
)

const sessionColumns = `
	id, mentee_id, mentor_id, title, description, topic, agenda,
	scheduled_start, duration_min, timezone, status,
	meeting_link, mentor_message, mentor_responded_at,
	approved_at, declined_at, cancelled_at, cancelled_by, cancellation_reason,
	actual_start, actual_end, rating, review, rated_at,
	created_at, updated_at`

type CreateSessionInput struct {
	MenteeID        int64
	MentorID        int64
	Title           string
	Description     string
	Topic           string
	Agenda          []models.AgendaItem
	ScheduledStart  time.Time
	DurationMinutes int
	Timezone        string
}

type SessionListFilter struct {
	ActorID   int64
	Role      string
	Status    models.SessionStatus
	Timeframe string
	Offset    int
	Limit     int
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(
		&s.ID,
		&s.MenteeID,
		&s.MentorID,
		&s.Title,
		&s.Description,
		&s.Topic,
		&s.Agenda,
		&s.ScheduledStart,
		&s.DurationMinutes,
		&s.Timezone,
		&s.Status,
		&s.MeetingLink,
		&s.MentorMessage,
		&s.MentorRespondedAt,
		&s.ApprovedAt,
		&s.DeclinedAt,
		&s.CancelledAt,
		&s.CancelledBy,
		&s.CancellationReason,
		&s.ActualStart,
		&s.ActualEnd,
		&s.Rating,
		&s.Review,
		&s.RatedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) updateSession(
	ctx context.Context,
	query string,
	args ...any,
) (*models.Session, error) {
	var session *models.Session
	err := withRetry(ctx, func() error {
		var scanErr error
		session, scanErr = scanSession(r.db.QueryRow(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, error) {
	query := `
		INSERT INTO sessions
			(mentee_id, mentor_id, title, description, topic, agenda,
			 scheduled_start, duration_min, timezone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending')
		RETURNING` + sessionColumns

	agenda := input.Agenda
	if agenda == nil {
		agenda = []models.AgendaItem{}
	}

	var session *models.Session
	err := withRetry(ctx, func() error {
		var scanErr error
		session, scanErr = scanSession(r.db.QueryRow(
			ctx,
			query,
			input.MenteeID,
			input.MentorID,
			input.Title,
			input.Description,
			input.Topic,
			agenda,
			input.ScheduledStart,
			input.DurationMinutes,
			input.Timezone,
		))
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := `SELECT` + sessionColumns + ` FROM sessions WHERE id = $1`

	var session *models.Session
	err := withRetry(ctx, func() error {
		var scanErr error
		session, scanErr = scanSession(r.db.QueryRow(ctx, query, sessionID))
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (r *SessionRepository) GetByIDForUpdate(
	ctx context.Context,
	sessionID int64,
) (*models.Session, error) {
	query := `SELECT` + sessionColumns + ` FROM sessions WHERE id = $1 FOR UPDATE`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

// List returns one page of the actor's sessions plus the unpaged total.
func (r *SessionRepository) List(
	ctx context.Context,
	filter SessionListFilter,
) ([]models.Session, int, error) {
	actorColumn := "mentee_id"
	if filter.Role == models.RoleMentor {
		actorColumn = "mentor_id"
	}

	args := []any{filter.ActorID}
	whereParts := []string{fmt.Sprintf("%s = $1", actorColumn)}

	if filter.Status != "" {
		args = append(args, filter.Status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	switch filter.Timeframe {
	case "upcoming":
		whereParts = append(
			whereParts,
			"(scheduled_start + (duration_min * INTERVAL '1 minute')) > NOW()",
		)
	case "past":
		whereParts = append(
			whereParts,
			"(scheduled_start + (duration_min * INTERVAL '1 minute')) <= NOW()",
		)
	}

	where := strings.Join(whereParts, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM sessions WHERE %s", where)
	err := withRetry(ctx, func() error {
		return r.db.QueryRow(ctx, countQuery, args...).Scan(&total)
	})
	if err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT%s
		FROM sessions
		WHERE %s
		ORDER BY scheduled_start ASC, id ASC
		LIMIT $%d OFFSET $%d
	`, sessionColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

// FindOverlapping returns the first committed session of the mentor whose
// half-open slot [scheduled_start, scheduled_start+duration) overlaps the
// requested one, or nil when the slot is free. Two half-open intervals
// overlap iff each starts before the other ends.
func (r *SessionRepository) FindOverlapping(
	ctx context.Context,
	mentorID int64,
	start time.Time,
	durationMinutes int,
) (*models.Session, error) {
	query := `
		SELECT` + sessionColumns + `
		FROM sessions
		WHERE mentor_id = $1
		  AND status IN ('pending', 'approved')
		  AND scheduled_start < ($2::timestamptz + ($3::int * INTERVAL '1 minute'))
		  AND (scheduled_start + (duration_min * INTERVAL '1 minute')) > $2::timestamptz
		ORDER BY scheduled_start ASC, id ASC
		LIMIT 1
	`
	session, err := scanSession(r.db.QueryRow(ctx, query, mentorID, start, durationMinutes))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

// Approve moves a pending session to approved. The WHERE status guard makes
// the transition a compare-and-swap; a lost race surfaces as pgx.ErrNoRows.
func (r *SessionRepository) Approve(
	ctx context.Context,
	sessionID int64,
	meetingLink string,
	message *string,
) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'approved',
			approved_at = NOW(),
			meeting_link = $2,
			mentor_message = $3,
			mentor_responded_at = CASE WHEN $3::text IS NULL THEN mentor_responded_at ELSE NOW() END,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING` + sessionColumns
	return r.updateSession(ctx, query, sessionID, meetingLink, message)
}

func (r *SessionRepository) Decline(
	ctx context.Context,
	sessionID int64,
	message *string,
) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'declined',
			declined_at = NOW(),
			mentor_message = $2,
			mentor_responded_at = CASE WHEN $2::text IS NULL THEN mentor_responded_at ELSE NOW() END,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING` + sessionColumns
	return r.updateSession(ctx, query, sessionID, message)
}

func (r *SessionRepository) Cancel(
	ctx context.Context,
	sessionID int64,
	currentStatus models.SessionStatus,
	cancelledBy string,
	reason *string,
) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'cancelled',
			cancelled_at = NOW(),
			cancelled_by = $3,
			cancellation_reason = $4,
			approved_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING` + sessionColumns
	return r.updateSession(ctx, query, sessionID, currentStatus, cancelledBy, reason)
}

func (r *SessionRepository) Complete(
	ctx context.Context,
	sessionID int64,
	actualStart *time.Time,
	actualEnd *time.Time,
) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'completed',
			actual_start = $2,
			actual_end = $3,
			updated_at = NOW()
		WHERE id = $1 AND status = 'approved'
		RETURNING` + sessionColumns
	return r.updateSession(ctx, query, sessionID, actualStart, actualEnd)
}

func (r *SessionRepository) MarkNoShow(
	ctx context.Context,
	sessionID int64,
) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'no-show',
			updated_at = NOW()
		WHERE id = $1 AND status = 'approved'
		RETURNING` + sessionColumns
	return r.updateSession(ctx, query, sessionID)
}

// SetRating records the mentee's feedback exactly once. The rated_at guard
// rejects a second rating even under concurrent submissions.
func (r *SessionRepository) SetRating(
	ctx context.Context,
	sessionID int64,
	rating int,
	review *string,
) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET rating = $2,
			review = $3,
			rated_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = 'completed' AND rated_at IS NULL
		RETURNING` + sessionColumns
	return r.updateSession(ctx, query, sessionID, rating, review)
}

// ListOverdueApproved returns ids of approved sessions whose scheduled
// window ended at or before now. The sweeper finalizes them.
func (r *SessionRepository) ListOverdueApproved(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]int64, error) {
	query := `
		SELECT id
		FROM sessions
		WHERE status = 'approved'
		  AND (scheduled_start + (duration_min * INTERVAL '1 minute')) <= $1
		ORDER BY scheduled_start ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
