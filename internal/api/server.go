// Package api exposes the bus stop database, settings and live departures
// over HTTP.
package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/mybus-data/internal/busstop"
	"github.com/mybus-data/internal/common/logger"
	"github.com/mybus-data/internal/common/maintenance"
	"github.com/mybus-data/internal/settings"
	"github.com/mybus-data/internal/updater"
	model "github.com/mybus-data/pkg/livetimes"
)

// Settings is the part of the settings store the API writes to.
type Settings interface {
	Favourites(ctx context.Context) ([]settings.Favourite, error)
	AddOrUpdateFavourite(ctx context.Context, stopCode, stopName string) error
	RemoveFavourite(ctx context.Context, stopCode string) (bool, error)
	FavouriteName(ctx context.Context, stopCode string) (string, error)

	Alerts(ctx context.Context) ([]settings.Alert, error)
	AddProximityAlert(ctx context.Context, stopCode string, distanceMetres int) error
	AddTimeAlert(ctx context.Context, stopCode string, services []string, minutes int) error
	RemoveProximityAlert(ctx context.Context, stopCode string) (bool, error)
	RemoveTimeAlert(ctx context.Context, stopCode string) (bool, error)
}

// LiveTimes supplies live departures.
type LiveTimes interface {
	BusTimes(ctx context.Context, stopCode string) (*model.LiveBusTimes, error)
	JourneyTimes(ctx context.Context, stopCode, journeyID string) (*model.Journey, error)
}

// UpdateRunner runs a database update check on demand.
type UpdateRunner interface {
	ForceRun(ctx context.Context) (updater.Result, error)
}

// Housekeeping runs and reports on maintenance tasks.
type Housekeeping interface {
	TriggerCleanup(ctx context.Context) ([]maintenance.CleanupResult, error)
	Status() map[string]interface{}
}

// Dependencies are the services behind the routes. BusStops and Settings are
// required. LiveTimes, Updater and Maintenance may be nil, in which case their
// routes answer 503.
type Dependencies struct {
	Version     string
	BusStops    busstop.Repository
	Settings    Settings
	LiveTimes   LiveTimes
	Updater     UpdateRunner
	Maintenance Housekeeping
}

type Server struct {
	app    *fiber.App
	deps   Dependencies
	logger logger.Logger
}

func NewServer(deps Dependencies, log logger.Logger) *Server {
	s := &Server{
		deps:   deps,
		logger: log,
	}

	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "mybus-data",
		Immutable:             true,
	})
	webApp.Use(NewLogger(log))

	webApp.Get("/version", s.getVersion)

	s.DatabaseRouter(webApp.Group("/database"))
	s.StopsRouter(webApp.Group("/stops"))
	s.ServicesRouter(webApp.Group("/services"))
	s.FavouritesRouter(webApp.Group("/favourites"))
	s.AlertsRouter(webApp.Group("/alerts"))
	s.JourneysRouter(webApp.Group("/journeys"))
	s.MaintenanceRouter(webApp.Group("/maintenance"))

	s.app = webApp
	return s
}

// App returns the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("Starting HTTP API", "listen", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) getVersion(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": s.deps.Version,
	})
}

func sendError(c *fiber.Ctx, status int, message string) error {
	c.Status(status)
	return c.JSON(fiber.Map{
		"error": message,
	})
}
