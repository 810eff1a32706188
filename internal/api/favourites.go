package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

type favouriteRequest struct {
	StopName string `json:"stop_name" validate:"max=200"`
}

type proximityAlertRequest struct {
	StopCode       string `json:"stop_code" validate:"required"`
	DistanceMetres int    `json:"distance_metres" validate:"required,min=1,max=5000"`
}

type timeAlertRequest struct {
	StopCode string   `json:"stop_code" validate:"required"`
	Services []string `json:"services" validate:"required,min=1,dive,required"`
	Minutes  int      `json:"minutes" validate:"required,min=1,max=60"`
}

// parseBody decodes and validates a JSON body into req, writing a 400 when
// either fails.
func parseBody(c *fiber.Ctx, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, sendError(c, fiber.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return false, sendError(c, fiber.StatusBadRequest, strings.Join(fields, ", "))
		}
		return false, sendError(c, fiber.StatusBadRequest, err.Error())
	}
	return true, nil
}

func (s *Server) FavouritesRouter(router fiber.Router) {
	router.Get("/", s.listFavourites)
	router.Put("/:code", s.putFavourite)
	router.Delete("/:code", s.deleteFavourite)
}

func (s *Server) listFavourites(c *fiber.Ctx) error {
	favourites, err := s.deps.Settings.Favourites(c.UserContext())
	if err != nil {
		return s.handleError(c, err)
	}
	return c.JSON(favourites)
}

// putFavourite names the stop after the request body, or after the stop
// itself when no name is given.
func (s *Server) putFavourite(c *fiber.Ctx) error {
	ctx := c.UserContext()
	code := c.Params("code")

	var req favouriteRequest
	if len(c.Body()) > 0 {
		if ok, err := parseBody(c, &req); !ok {
			return err
		}
	}

	name := strings.TrimSpace(req.StopName)
	if name == "" {
		stop, err := s.deps.BusStops.BusStop(ctx, code)
		if err != nil {
			return s.handleError(c, err)
		}
		name = stop.StopName
	}

	if err := s.deps.Settings.AddOrUpdateFavourite(ctx, code, name); err != nil {
		return s.handleError(c, err)
	}
	return c.JSON(fiber.Map{
		"stop_code": code,
		"stop_name": name,
	})
}

func (s *Server) deleteFavourite(c *fiber.Ctx) error {
	removed, err := s.deps.Settings.RemoveFavourite(c.UserContext(), c.Params("code"))
	if err != nil {
		return s.handleError(c, err)
	}
	if !removed {
		return sendError(c, fiber.StatusNotFound, "Could not find favourite")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
