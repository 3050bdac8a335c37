package api

import (
	"errors"

	"personal-days-bot/internal/service"

	"github.com/gofiber/fiber/v2"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor переводит вид ошибки в HTTP статус
func statusFor(err error) int {
	switch service.KindOf(err) {
	case service.ValidationError:
		return fiber.StatusUnprocessableEntity
	case service.StateError:
		switch service.CodeOf(err) {
		case service.CodeNotFound:
			return fiber.StatusNotFound
		case service.CodeForbidden:
			return fiber.StatusForbidden
		}
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Error: fe.Message, Code: "http"})
	}

	var se *service.Error
	if errors.As(err, &se) {
		status := statusFor(err)
		if status >= fiber.StatusInternalServerError {
			s.logger.WithError(err).WithField("path", c.Path()).Error("Request failed")
		}
		return c.Status(status).JSON(errorBody{Error: se.Message, Code: se.Code})
	}

	s.logger.WithError(err).WithField("path", c.Path()).Error("Request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(errorBody{
		Error: "internal error",
		Code:  "internal",
	})
}
