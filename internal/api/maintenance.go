package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mybus-data/internal/common/maintenance"
)

func (s *Server) MaintenanceRouter(router fiber.Router) {
	router.Get("/", s.getMaintenance)
	router.Post("/cleanup", s.triggerCleanup)
}

func (s *Server) getMaintenance(c *fiber.Ctx) error {
	if s.deps.Maintenance == nil {
		return sendError(c, fiber.StatusServiceUnavailable, "maintenance is not configured")
	}
	return c.JSON(s.deps.Maintenance.Status())
}

func (s *Server) triggerCleanup(c *fiber.Ctx) error {
	if s.deps.Maintenance == nil {
		return sendError(c, fiber.StatusServiceUnavailable, "maintenance is not configured")
	}

	results, err := s.deps.Maintenance.TriggerCleanup(c.UserContext())
	if errors.Is(err, maintenance.ErrReplaceInProgress) {
		return sendError(c, fiber.StatusConflict, err.Error())
	}
	if err != nil {
		return s.handleError(c, err)
	}
	return c.JSON(results)
}
