package api

import "github.com/gofiber/fiber/v2"

type checkResponse struct {
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	TopologyID string `json:"topology_id,omitempty"`
	SchemaName string `json:"schema_name,omitempty"`
}

func (s *Server) DatabaseRouter(router fiber.Router) {
	router.Get("/", s.getDatabase)
	router.Post("/check", s.checkDatabase)
}

func (s *Server) getDatabase(c *fiber.Ctx) error {
	info, err := s.deps.BusStops.CurrentVersion(c.UserContext())
	if err != nil {
		return s.handleError(c, err)
	}
	return c.JSON(info)
}

// checkDatabase runs an update check now, ignoring the check interval and
// the metered network preference.
func (s *Server) checkDatabase(c *fiber.Ctx) error {
	if s.deps.Updater == nil {
		return sendError(c, fiber.StatusServiceUnavailable, "database updates are not configured")
	}

	result, err := s.deps.Updater.ForceRun(c.UserContext())
	if err != nil {
		return s.handleError(c, err)
	}

	resp := checkResponse{
		Status: result.Status.String(),
		Reason: result.Reason,
	}
	if result.Version != nil {
		resp.TopologyID = result.Version.TopologyID
		resp.SchemaName = result.Version.SchemaName
	}
	return c.JSON(resp)
}
