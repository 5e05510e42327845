package services

import (
	"log"

	"github.com/9A-Ayush/Mentor-Connect/internal/models"
)

// Notifier receives best-effort fan-out after successful transitions. It runs
// outside the transaction; failures are the collaborator's problem, never the
// caller's.
type Notifier interface {
	SessionRequested(session *models.Session)
	SessionTransitioned(session *models.Session, previous models.SessionStatus)
	SessionRated(session *models.Session)
}

type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) SessionRequested(session *models.Session) {
	log.Printf(
		"session %d requested: mentee=%d mentor=%d start=%s",
		session.ID, session.MenteeID, session.MentorID,
		session.ScheduledStart.Format("2006-01-02 15:04"),
	)
}

func (n *LogNotifier) SessionTransitioned(session *models.Session, previous models.SessionStatus) {
	log.Printf(
		"session %d: %s -> %s (mentee=%d mentor=%d)",
		session.ID, previous, session.Status, session.MenteeID, session.MentorID,
	)
}

func (n *LogNotifier) SessionRated(session *models.Session) {
	rating := 0
	if session.Rating != nil {
		rating = *session.Rating
	}
	log.Printf("session %d rated %d for mentor %d", session.ID, rating, session.MentorID)
}
