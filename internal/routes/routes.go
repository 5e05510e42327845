package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/9A-Ayush/Mentor-Connect/internal/config"
	"github.com/9A-Ayush/Mentor-Connect/internal/handlers"
	"github.com/9A-Ayush/Mentor-Connect/internal/middleware"
	"github.com/9A-Ayush/Mentor-Connect/internal/repository"
	"github.com/9A-Ayush/Mentor-Connect/internal/services"
)

// RegisterRoutes wires repositories, services and handlers onto the app and
// returns the session service so main can hand it to the sweeper.
func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) *services.SessionService {
	userRepo := repository.NewUserRepository(db)
	mentorProfileRepo := repository.NewMentorProfileRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	sessionService := services.NewSessionService(
		db,
		sessionRepo,
		userRepo,
		mentorProfileRepo,
		services.NewLogNotifier(),
	)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	mentorHandler := handlers.NewMentorHandler(mentorProfileRepo)

	api := app.Group("/api")
	v1 := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	sessions := v1.Group("/sessions")
	sessions.Post("/book", sessionHandler.CreateSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Put("/:id/respond", sessionHandler.RespondToRequest)
	sessions.Post("/:id/cancel", sessionHandler.CancelSession)
	sessions.Post("/:id/finalize", sessionHandler.FinalizeSession)
	sessions.Post("/:id/rate", sessionHandler.RateSession)

	mentors := v1.Group("/mentors")
	mentors.Get("/:id", mentorHandler.GetMentor)
	mentors.Get("/:id/availability", sessionHandler.CheckAvailability)

	return sessionService
}
