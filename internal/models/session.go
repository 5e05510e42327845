package models

import "time"

// SessionStatus is the closed set of booking states. Transitions between
// them are validated centrally by the services state machine; nothing else
// writes the status column.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusApproved  SessionStatus = "approved"
	StatusDeclined  SessionStatus = "declined"
	StatusCancelled SessionStatus = "cancelled"
	StatusCompleted SessionStatus = "completed"
	StatusNoShow    SessionStatus = "no-show"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusDeclined, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Committed reports whether the session occupies its mentor's time slot.
func (s SessionStatus) Committed() bool {
	return s == StatusPending || s == StatusApproved
}

// Cancelling party recorded on a cancelled session.
const (
	CancelledByMentee = "mentee"
	CancelledByMentor = "mentor"
	CancelledBySystem = "system"
)

type AgendaItem struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

type Session struct {
	ID              int64         `json:"id"`
	MenteeID        int64         `json:"mentee_id"`
	MentorID        int64         `json:"mentor_id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Topic           string        `json:"topic"`
	Agenda          []AgendaItem  `json:"agenda"`
	ScheduledStart  time.Time     `json:"scheduled_start"`
	DurationMinutes int           `json:"duration_minutes"`
	Timezone        string        `json:"timezone"`
	Status          SessionStatus `json:"status"`

	MeetingLink       *string    `json:"meeting_link"`
	MentorMessage     *string    `json:"mentor_message"`
	MentorRespondedAt *time.Time `json:"mentor_responded_at"`

	ApprovedAt         *time.Time `json:"approved_at"`
	DeclinedAt         *time.Time `json:"declined_at"`
	CancelledAt        *time.Time `json:"cancelled_at"`
	CancelledBy        *string    `json:"cancelled_by"`
	CancellationReason *string    `json:"cancellation_reason"`

	ActualStart *time.Time `json:"actual_start"`
	ActualEnd   *time.Time `json:"actual_end"`

	Rating  *int       `json:"rating"`
	Review  *string    `json:"review"`
	RatedAt *time.Time `json:"rated_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScheduledEnd is the exclusive end of the booked slot.
func (s *Session) ScheduledEnd() time.Time {
	return s.ScheduledStart.Add(time.Duration(s.DurationMinutes) * time.Minute)
}
