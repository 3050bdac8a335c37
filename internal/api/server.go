package api

import (
	"time"

	"personal-days-bot/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

// IdentityHeader - адрес, подтвержденный прокси авторизации перед сервисом
const IdentityHeader = "X-Verified-Email"

const localEmail = "email"

type Server struct {
	requests  *service.LeaveRequestService
	reminders *service.ReminderService
	users     *service.UserService
	export    *service.ExportService
	loc       *time.Location
	logger    *logrus.Logger
}

func NewServer(
	requests *service.LeaveRequestService,
	reminders *service.ReminderService,
	users *service.UserService,
	export *service.ExportService,
	loc *time.Location,
	logger *logrus.Logger,
) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		requests:  requests,
		reminders: reminders,
		users:     users,
		export:    export,
		loc:       loc,
		logger:    logger,
	}
}

// App собирает fiber-приложение со всеми маршрутами
func (s *Server) App() *fiber.App {
	// Immutable: строки из запроса попадают в реестр и живут дольше запроса
	app := fiber.New(fiber.Config{
		AppName:               "personal-days-bot",
		DisableStartupMessage: true,
		Immutable:             true,
		ErrorHandler:          s.errorHandler,
	})

	app.Use(recover.New())
	app.Use(s.requestLogger())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1", s.identityMiddleware())

	v1.Post("/requests", s.submitRequest)
	v1.Get("/requests/mine", s.listMine)

	admin := s.adminMiddleware()
	v1.Get("/requests/pending", admin, s.listPending)
	v1.Get("/requests/export", admin, s.exportLedger)
	v1.Post("/requests/:id/status", admin, s.transitionRequest)
	v1.Get("/reminders", admin, s.listExpiring)
	v1.Post("/reminders/notify", admin, s.notifyExpiring)

	return app
}

func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			// ответ с ошибкой пишем здесь, чтобы в логе был итоговый статус
			if handlerErr := s.errorHandler(c, err); handlerErr != nil {
				return handlerErr
			}
		}

		s.logger.WithFields(logrus.Fields{
			"method":   c.Method(),
			"path":     c.Path(),
			"status":   c.Response().StatusCode(),
			"duration": time.Since(start).String(),
		}).Info("HTTP request")

		return nil
	}
}

func (s *Server) identityMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		email := c.Get(IdentityHeader)
		if email == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(errorBody{
				Error: "verified identity is required",
				Code:  "unauthenticated",
			})
		}
		c.Locals(localEmail, email)
		return c.Next()
	}
}

func (s *Server) adminMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isAdmin, err := s.users.IsAdmin(c.UserContext(), currentEmail(c))
		if err != nil {
			return err
		}
		if !isAdmin {
			return c.Status(fiber.StatusForbidden).JSON(errorBody{
				Error: "administrator access required",
				Code:  service.CodeForbidden,
			})
		}
		return c.Next()
	}
}

func currentEmail(c *fiber.Ctx) string {
	email, _ := c.Locals(localEmail).(string)
	return email
}
