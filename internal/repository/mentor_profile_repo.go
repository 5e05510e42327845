package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/9A-Ayush/Mentor-Connect/internal/models"
)

const mentorProfileColumns = `
	id, user_id, full_name, bio, expertise, is_active,
	average_rating, total_ratings, total_sessions, completed_sessions,
	created_at, updated_at`

type MentorProfileRepository struct {
	db DBTX
}

func NewMentorProfileRepository(db DBTX) *MentorProfileRepository {
	return &MentorProfileRepository{db: db}
}

func scanMentorProfile(row pgx.Row) (*models.MentorProfile, error) {
	var p models.MentorProfile
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.FullName,
		&p.Bio,
		&p.Expertise,
		&p.IsActive,
		&p.AverageRating,
		&p.TotalRatings,
		&p.TotalSessions,
		&p.CompletedSessions,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *MentorProfileRepository) GetByUserID(
	ctx context.Context,
	userID int64,
) (*models.MentorProfile, error) {
	query := `SELECT` + mentorProfileColumns + ` FROM mentor_profiles WHERE user_id = $1`

	var profile *models.MentorProfile
	err := withRetry(ctx, func() error {
		var scanErr error
		profile, scanErr = scanMentorProfile(r.db.QueryRow(ctx, query, userID))
		return scanErr
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// RecomputeReputation rebuilds the mentor's aggregate from the session set
// in one statement, so the stored values never drift from the rows they
// summarize. Callers serialize per mentor before invoking it.
func (r *MentorProfileRepository) RecomputeReputation(
	ctx context.Context,
	mentorUserID int64,
) (*models.MentorProfile, error) {
	query := `
		UPDATE mentor_profiles mp
		SET average_rating = stats.average_rating,
			total_ratings = stats.total_ratings,
			total_sessions = stats.total_sessions,
			completed_sessions = stats.completed_sessions,
			updated_at = NOW()
		FROM (
			SELECT
				ROUND(AVG(rating)::numeric, 1) AS average_rating,
				COUNT(rating) AS total_ratings,
				COUNT(*) AS total_sessions,
				COUNT(*) FILTER (WHERE status = 'completed') AS completed_sessions
			FROM sessions
			WHERE mentor_id = $1
		) AS stats
		WHERE mp.user_id = $1
		RETURNING` + mentorProfileColumnsQualified
	return scanMentorProfile(r.db.QueryRow(ctx, query, mentorUserID))
}

const mentorProfileColumnsQualified = `
	mp.id, mp.user_id, mp.full_name, mp.bio, mp.expertise, mp.is_active,
	mp.average_rating, mp.total_ratings, mp.total_sessions, mp.completed_sessions,
	mp.created_at, mp.updated_at`
