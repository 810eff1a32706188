package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) AlertsRouter(router fiber.Router) {
	router.Get("/", s.listAlerts)
	router.Post("/proximity", s.addProximityAlert)
	router.Post("/time", s.addTimeAlert)
	router.Delete("/proximity/:code", s.removeAlert(s.deps.Settings.RemoveProximityAlert))
	router.Delete("/time/:code", s.removeAlert(s.deps.Settings.RemoveTimeAlert))
}

func (s *Server) listAlerts(c *fiber.Ctx) error {
	alerts, err := s.deps.Settings.Alerts(c.UserContext())
	if err != nil {
		return s.handleError(c, err)
	}
	return c.JSON(alerts)
}

func (s *Server) addProximityAlert(c *fiber.Ctx) error {
	var req proximityAlertRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	if err := s.deps.Settings.AddProximityAlert(c.UserContext(), req.StopCode, req.DistanceMetres); err != nil {
		return s.handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

func (s *Server) addTimeAlert(c *fiber.Ctx) error {
	var req timeAlertRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	if err := s.deps.Settings.AddTimeAlert(c.UserContext(), req.StopCode, req.Services, req.Minutes); err != nil {
		return s.handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

func (s *Server) removeAlert(remove func(ctx context.Context, stopCode string) (bool, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		removed, err := remove(c.UserContext(), c.Params("code"))
		if err != nil {
			return s.handleError(c, err)
		}
		if !removed {
			return sendError(c, fiber.StatusNotFound, "Could not find alert")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
