package models

import "time"

// MentorProfile carries the fields the booking core reads (existence and
// active flag) and writes (the reputation aggregate). The aggregate is a
// materialized view over the mentor's session set and is always recomputable
// from scratch.
type MentorProfile struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"user_id"`
	FullName          *string   `json:"full_name"`
	Bio               *string   `json:"bio"`
	Expertise         *[]string `json:"expertise"`
	IsActive          bool      `json:"is_active"`
	AverageRating     *float64  `json:"average_rating"`
	TotalRatings      int       `json:"total_ratings"`
	TotalSessions     int       `json:"total_sessions"`
	CompletedSessions int       `json:"completed_sessions"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
