package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/9A-Ayush/Mentor-Connect/internal/models"
)

type mentorProfileReader interface {
	GetByUserID(ctx context.Context, userID int64) (*models.MentorProfile, error)
}

// MentorHandler exposes the mentor profile surface this core reads and
// writes: the existence/active flag and the reputation aggregate.
type MentorHandler struct {
	mentorRepo mentorProfileReader
}

func NewMentorHandler(mentorRepo mentorProfileReader) *MentorHandler {
	return &MentorHandler{mentorRepo: mentorRepo}
}

func (h *MentorHandler) GetMentor(c *fiber.Ctx) error {
	mentorID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || mentorID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mentor id"})
	}

	profile, err := h.mentorRepo.GetByUserID(c.Context(), mentorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Mentor not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch mentor"})
	}

	return c.JSON(fiber.Map{"mentor": profile})
}
