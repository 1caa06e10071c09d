// Package httpapi exposes birthdays, settings, push tokens and the reminder check over HTTP.
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/scheduler"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/store"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/transfer"
)

// UserHeader carries the caller's user id, set by the upstream gateway.
const UserHeader = "X-User-ID"

const localUserID = "user_id"

// Dispatcher is the part of the scheduler the API drives. scheduler.Scheduler implements it.
type Dispatcher interface {
	Check(ctx context.Context, now time.Time) (scheduler.Report, error)
	Preview(ctx context.Context, userID string, now time.Time) ([]domain.Evaluation, error)
	Upcoming(ctx context.Context, userID string, now time.Time, days int) ([]domain.Upcoming, error)
	SendTest(ctx context.Context, userID string) (scheduler.Delivery, error)
}

// Server is the fiber application with its dependencies.
type Server struct {
	app        *fiber.App
	repo       store.Repo
	sched      Dispatcher
	log        *zap.Logger
	cronSecret string
	pdfFont    string
	now        func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithCronSecret requires "Authorization: Bearer <secret>" on the cron endpoint.
func WithCronSecret(secret string) Option { return func(s *Server) { s.cronSecret = secret } }

// WithPDFFont sets the TrueType font used for PDF exports.
func WithPDFFont(path string) Option { return func(s *Server) { s.pdfFont = path } }

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

func New(repo store.Repo, sched Dispatcher, log *zap.Logger, opts ...Option) *Server {
	s := &Server{
		repo:  repo,
		sched: sched,
		log:   log,
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "birthday-reminder",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             8 << 20,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.app.ShutdownWithContext(ctx) }

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Registered before the user group so the cron handler answers without X-User-ID.
	cron := s.app.Group("/api/cron", s.requireCron)
	cron.Get("/check-birthdays", s.cronCheck)
	cron.Post("/check-birthdays", s.cronCheck)

	api := s.app.Group("/api", s.requireUser)

	api.Get("/birthdays", s.listBirthdays)
	api.Post("/birthdays", s.createBirthday)
	api.Get("/birthdays/today", s.todayBirthdays)
	api.Get("/birthdays/upcoming", s.upcomingBirthdays)
	api.Post("/birthdays/bulk-delete", s.bulkDelete)
	api.Get("/birthdays/:id", s.getBirthday)
	api.Put("/birthdays/:id", s.updateBirthday)
	api.Delete("/birthdays/:id", s.deleteBirthday)

	api.Get("/settings", s.getSettings)
	api.Put("/settings", s.putSettings)

	api.Post("/push-tokens", s.addPushToken)
	api.Delete("/push-tokens", s.deletePushToken)

	api.Get("/export", s.export)
	api.Post("/import", s.importRecords)

	api.Post("/notifications/test", s.sendTest)
	api.Get("/diagnostics/evaluate", s.diagnose)
}

func (s *Server) requireUser(c *fiber.Ctx) error {
	uid := strings.TrimSpace(c.Get(UserHeader))
	if uid == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing "+UserHeader+" header")
	}
	c.Locals(localUserID, uid)
	return c.Next()
}

func userID(c *fiber.Ctx) string {
	uid, _ := c.Locals(localUserID).(string)
	return uid
}

// requireCron checks the bearer secret. With no secret configured the endpoint is open.
func (s *Server) requireCron(c *fiber.Ctx) error {
	if s.cronSecret == "" {
		return c.Next()
	}
	got := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.cronSecret)) != 1 {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return c.Next()
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := err.Error()

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		msg = fe.Message
	case errors.Is(err, store.ErrNotFound):
		code = fiber.StatusNotFound
		msg = "not found"
	case errors.Is(err, domain.ErrInvalidRecord), errors.Is(err, transfer.ErrUnsupportedFormat):
		code = fiber.StatusBadRequest
	}

	if code >= fiber.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		msg = "internal error"
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func badRequest(err error) error {
	return fiber.NewError(fiber.StatusBadRequest, err.Error())
}
