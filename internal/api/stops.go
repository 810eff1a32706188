package api

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mybus-data/internal/busstop"
)

const (
	defaultSearchLimit  = 50
	defaultNearbyRadius = 500
)

type stopResponse struct {
	busstop.BusStop
	FavouriteName string `json:"favourite_name,omitempty"`
}

func (s *Server) StopsRouter(router fiber.Router) {
	router.Get("/", s.searchStops)
	router.Get("/nearby", s.nearbyStops)
	router.Get("/:code", s.getStop)
	router.Get("/:code/services", s.getStopServices)
	router.Get("/:code/departures", s.getDepartures)
}

func (s *Server) searchStops(c *fiber.Ctx) error {
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		return sendError(c, fiber.StatusBadRequest, "q is required")
	}

	stops, err := s.deps.BusStops.SearchStops(c.UserContext(), query, c.QueryInt("limit", defaultSearchLimit))
	if err != nil {
		return s.handleError(c, err)
	}
	return c.JSON(stops)
}

func (s *Server) nearbyStops(c *fiber.Ctx) error {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return sendError(c, fiber.StatusBadRequest, "lat must be a number")
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		return sendError(c, fiber.StatusBadRequest, "lon must be a number")
	}
	radius := c.QueryFloat("radius", defaultNearbyRadius)
	if radius <= 0 {
		return sendError(c, fiber.StatusBadRequest, "radius must be positive")
	}

	var services []string
	if raw := c.Query("services"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				services = append(services, name)
			}
		}
	}

	stops, err := s.deps.BusStops.NearbyStops(c.UserContext(), busstop.NearbyQuery{
		Latitude:     lat,
		Longitude:    lon,
		RadiusMetres: radius,
		Services:     services,
		Limit:        c.QueryInt("limit"),
	})
	if err != nil {
		return s.handleError(c, err)
	}
	return c.JSON(stops)
}

func (s *Server) getStop(c *fiber.Ctx) error {
	ctx := c.UserContext()

	stop, err := s.deps.BusStops.BusStop(ctx, c.Params("code"))
	if err != nil {
		return s.handleError(c, err)
	}

	name, err := s.deps.Settings.FavouriteName(ctx, stop.StopCode)
	if err != nil {
		return s.handleError(c, err)
	}
	return c.JSON(stopResponse{BusStop: *stop, FavouriteName: name})
}

func (s *Server) getStopServices(c *fiber.Ctx) error {
	services, err := s.deps.BusStops.ServicesForStop(c.UserContext(), c.Params("code"))
	if err != nil {
		return s.handleError(c, err)
	}
	return c.JSON(services)
}

func (s *Server) getDepartures(c *fiber.Ctx) error {
	if s.deps.LiveTimes == nil {
		return sendError(c, fiber.StatusServiceUnavailable, "live times are not configured")
	}

	times, err := s.deps.LiveTimes.BusTimes(c.UserContext(), c.Params("code"))
	if err != nil {
		return s.handleError(c, err)
	}
	return c.JSON(newLiveTimesResponse(times))
}
