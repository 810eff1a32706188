package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mybus-data/internal/busstop"
	"github.com/mybus-data/internal/livetimes"
	"github.com/mybus-data/internal/settings"
	"github.com/mybus-data/internal/updater"
)

func errorStatus(err error) int {
	switch {
	case errors.Is(err, busstop.ErrStopNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, busstop.ErrNotAvailable),
		errors.Is(err, livetimes.ErrSystemOverloaded),
		errors.Is(err, livetimes.ErrMaintenance):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, settings.ErrEmptyStopCode),
		errors.Is(err, livetimes.ErrInvalidParameter):
		return fiber.StatusBadRequest
	case errors.Is(err, livetimes.ErrAuthentication),
		errors.Is(err, livetimes.ErrServerError),
		errors.Is(err, livetimes.ErrInvalidData),
		errors.Is(err, livetimes.ErrUnknown),
		errors.Is(err, updater.ErrChecksumMismatch),
		errors.Is(err, updater.ErrInvalidResponse),
		errors.Is(err, busstop.ErrInvalidCandidate):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusInternalServerError
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.Path(), "error", err)
	}
	return sendError(c, status, err.Error())
}
