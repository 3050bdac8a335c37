package api

import (
	"strconv"

	"personal-days-bot/internal/models"
	"personal-days-bot/internal/service"
	"personal-days-bot/pkg/dates"
	"personal-days-bot/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type submitPayload struct {
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	Comment string `json:"comment"`
}

type statusPayload struct {
	Status string `json:"status" validate:"required,oneof=Approved Denied"`
}

type mineResponse struct {
	Requests []models.LeaveRequest `json:"requests"`
	Usage    service.QuotaUsage    `json:"usage"`
}

func invalidPayload(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(errorBody{
		Error: msg,
		Code:  service.CodeInvalidPayload,
	})
}

func (s *Server) submitRequest(c *fiber.Ctx) error {
	var payload submitPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "invalid request body", Code: service.CodeInvalidPayload})
	}
	if fieldErrors := validation.ValidateStruct(payload); len(fieldErrors) > 0 {
		return invalidPayload(c, validation.Join(fieldErrors))
	}

	date, err := dates.ParseInput(payload.Date, s.loc)
	if err != nil {
		return invalidPayload(c, err.Error())
	}

	id, err := s.requests.Submit(c.UserContext(), service.Identity{Email: currentEmail(c)}, date, payload.Comment)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (s *Server) listMine(c *fiber.Ctx) error {
	email := currentEmail(c)

	requests, err := s.requests.ListMine(c.UserContext(), email)
	if err != nil {
		return err
	}

	usage, err := s.requests.Usage(c.UserContext(), email)
	if err != nil {
		return err
	}

	if requests == nil {
		requests = []models.LeaveRequest{}
	}
	return c.JSON(mineResponse{Requests: requests, Usage: usage})
}

func (s *Server) listPending(c *fiber.Ctx) error {
	pending, err := s.requests.ListPending(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"requests": pending})
}

func (s *Server) transitionRequest(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id <= 0 {
		return invalidPayload(c, "request id must be a positive number")
	}

	var payload statusPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "invalid request body", Code: service.CodeInvalidPayload})
	}
	if fieldErrors := validation.ValidateStruct(payload); len(fieldErrors) > 0 {
		return invalidPayload(c, validation.Join(fieldErrors))
	}

	status, err := models.ParseStatus(payload.Status)
	if err != nil {
		return invalidPayload(c, err.Error())
	}

	if err := s.requests.Transition(c.UserContext(), models.RequestID(id), status); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"id": id, "status": status})
}

func (s *Server) listExpiring(c *fiber.Ctx) error {
	horizon := c.QueryInt("horizon", s.reminders.Horizon())
	if horizon < 0 {
		return invalidPayload(c, "horizon must not be negative")
	}

	expiring, err := s.reminders.FindExpiringSoon(c.UserContext(), horizon)
	if err != nil {
		return err
	}
	if expiring == nil {
		expiring = []service.ExpiringRequest{}
	}
	return c.JSON(fiber.Map{"horizon": horizon, "requests": expiring})
}

func (s *Server) notifyExpiring(c *fiber.Ctx) error {
	count, err := s.reminders.NotifyExpiringSoon(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"notified": count})
}

func (s *Server) exportLedger(c *fiber.Ctx) error {
	buf, filename, err := s.export.ExportLedger(c.UserContext())
	if err != nil {
		return err
	}

	c.Attachment(filename)
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	return c.Send(buf.Bytes())
}
