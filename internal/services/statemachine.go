package services

import (
	"errors"
	"time"

	"github.com/9A-Ayush/Mentor-Connect/internal/models"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("scheduling conflict")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrMentorNotFound         = errors.New("mentor not found")
	ErrCancellationWindow     = errors.New("cancellation window has closed")
	ErrAlreadyRated           = errors.New("session is already rated")
	ErrNotRatable             = errors.New("session cannot be rated")
)

// Actor is the capability under which a transition is requested, as
// supplied by the identity collaborator.
type Actor string

const (
	ActorMentee   Actor = models.RoleMentee
	ActorMentor   Actor = models.RoleMentor
	ActorOperator Actor = models.RoleOperator
)

// cancellationWindow is how long before the scheduled start a session stops
// being cancellable by either party.
const cancellationWindow = 2 * time.Hour

type transitionKey struct {
	from models.SessionStatus
	to   models.SessionStatus
}

// transitionTable is the only place that says which status changes exist and
// who may request them. Everything not listed here is rejected, whoever asks.
var transitionTable = map[transitionKey][]Actor{
	{models.StatusPending, models.StatusApproved}:   {ActorMentor},
	{models.StatusPending, models.StatusDeclined}:   {ActorMentor},
	{models.StatusPending, models.StatusCancelled}:  {ActorMentee, ActorMentor},
	{models.StatusApproved, models.StatusCancelled}: {ActorMentee, ActorMentor},
	{models.StatusApproved, models.StatusCompleted}: {ActorOperator},
	{models.StatusApproved, models.StatusNoShow}:    {ActorOperator},
}

// validateTransition decides whether actor (bound to actorID for the
// participant roles) may move session to next at time now. Unknown
// transitions fail as conflicts before any actor check, so probing the
// table never leaks who would have been allowed.
func validateTransition(
	session *models.Session,
	actor Actor,
	actorID int64,
	next models.SessionStatus,
	now time.Time,
) error {
	allowed, ok := transitionTable[transitionKey{from: session.Status, to: next}]
	if !ok {
		return ErrInvalidStateTransition
	}

	permitted := false
	for _, a := range allowed {
		if a == actor {
			permitted = true
			break
		}
	}
	if !permitted {
		return ErrForbidden
	}

	switch actor {
	case ActorMentee:
		if session.MenteeID != actorID {
			return ErrForbidden
		}
	case ActorMentor:
		if session.MentorID != actorID {
			return ErrForbidden
		}
	}

	if next == models.StatusCancelled && actor != ActorOperator {
		if !now.Before(session.ScheduledStart.Add(-cancellationWindow)) {
			return ErrCancellationWindow
		}
	}

	return nil
}

// validateRating guards the one-shot feedback annotation: mentee only,
// completed sessions only, never twice.
func validateRating(session *models.Session, menteeID int64, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidInput
	}
	if session.MenteeID != menteeID {
		return ErrForbidden
	}
	if session.Status != models.StatusCompleted {
		return ErrNotRatable
	}
	if session.RatedAt != nil {
		return ErrAlreadyRated
	}
	return nil
}
