package link

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-rover/pkg/pathtracker"
	"github.com/teslashibe/go-rover/pkg/protocol"
)

// RegisterAPIRoutes registers API routes for vehicle management
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	vehicles := api.Group("/vehicles")

	// List connected vehicles
	vehicles.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"vehicles": h.GetVehicleInfos(),
			"count":    h.VehicleCount(),
		})
	})

	// Get hub stats
	vehicles.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})

	vehicles.Get("/:id", func(c *fiber.Ctx) error {
		s, err := h.lookup(c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(s.Info())
	})

	// Install a path
	vehicles.Post("/:id/path", func(c *fiber.Ctx) error {
		s, err := h.lookup(c.Params("id"))
		if err != nil {
			return err
		}

		var body protocol.PathData
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		goalIndex, pending, err := s.SetPath(body.ToPath())
		if err != nil {
			return c.Status(pathStatus(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{
			"status":     "accepted",
			"goal_index": goalIndex,
			"pending":    pending,
		})
	})

	// Cancel the path and stop
	vehicles.Delete("/:id/path", func(c *fiber.Ctx) error {
		s, err := h.lookup(c.Params("id"))
		if err != nil {
			return err
		}
		s.CancelPath()
		return c.JSON(fiber.Map{"status": "cancelled"})
	})

	// Mission journal, available after disconnect too
	vehicles.Get("/:id/events", func(c *fiber.Ctx) error {
		if h.journal == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "journal disabled")
		}
		events, err := h.journal.List(c.UserContext(), c.Params("id"), c.QueryInt("limit", 0))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{
			"events": events,
			"count":  len(events),
		})
	})
}

func (h *Hub) lookup(vehicleID string) (*Session, error) {
	s := h.Session(vehicleID)
	if s == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "vehicle not connected")
	}
	return s, nil
}

// pathStatus maps a SetPath error to an HTTP status.
func pathStatus(err error) int {
	switch {
	case errors.Is(err, pathtracker.ErrEmptyPath),
		errors.Is(err, pathtracker.ErrPathExhausted),
		errors.Is(err, pathtracker.ErrInvalidPose):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, pathtracker.ErrDetached):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}
