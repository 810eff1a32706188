package api

import "github.com/gofiber/fiber/v2"

func (s *Server) ServicesRouter(router fiber.Router) {
	router.Get("/", s.listServices)
	router.Get("/:name/points", s.getServicePoints)
}

func (s *Server) listServices(c *fiber.Ctx) error {
	services, err := s.deps.BusStops.Services(c.UserContext())
	if err != nil {
		return s.handleError(c, err)
	}
	return c.JSON(services)
}

func (s *Server) getServicePoints(c *fiber.Ctx) error {
	points, err := s.deps.BusStops.ServicePoints(c.UserContext(), c.Params("name"))
	if err != nil {
		return s.handleError(c, err)
	}
	if len(points) == 0 {
		c.SendStatus(fiber.StatusNotFound)
		return c.JSON(fiber.Map{
			"error": "Could not find route for service",
		})
	}
	return c.JSON(points)
}

func (s *Server) JourneysRouter(router fiber.Router) {
	router.Get("/:stop/:journey", s.getJourney)
}

func (s *Server) getJourney(c *fiber.Ctx) error {
	if s.deps.LiveTimes == nil {
		return sendError(c, fiber.StatusServiceUnavailable, "live times are not configured")
	}

	journey, err := s.deps.LiveTimes.JourneyTimes(c.UserContext(), c.Params("stop"), c.Params("journey"))
	if err != nil {
		return s.handleError(c, err)
	}
	return c.JSON(newJourneyResponse(journey))
}
