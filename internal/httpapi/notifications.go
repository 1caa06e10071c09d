package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func (s *Server) sendTest(c *fiber.Ctx) error {
	d, err := s.sched.SendTest(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(d)
}

// diagnose evaluates the caller's records at ?at= (RFC 3339, default now) without sending.
func (s *Server) diagnose(c *fiber.Ctx) error {
	at := s.now()
	if v := c.Query("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "at must be an RFC 3339 timestamp")
		}
		at = t
	}
	evs, err := s.sched.Preview(c.UserContext(), userID(c), at)
	if err != nil {
		return err
	}
	out := make([]evaluationJSON, 0, len(evs))
	due := 0
	for _, ev := range evs {
		if ev.Due {
			due++
		}
		out = append(out, toEvaluationJSON(ev))
	}
	return c.JSON(fiber.Map{"at": at.UTC().Format(time.RFC3339), "due": due, "evaluations": out})
}

func (s *Server) cronCheck(c *fiber.Ctx) error {
	rep, err := s.sched.Check(c.UserContext(), s.now())
	if err != nil {
		return err
	}
	s.log.Info("cron check",
		zap.Int("evaluated", rep.Evaluated),
		zap.Int("due", rep.Due),
		zap.Int("sent", rep.Sent),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed),
	)
	return c.JSON(rep)
}
