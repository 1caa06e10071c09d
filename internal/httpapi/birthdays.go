package httpapi

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
)

// TimezoneHeader optionally carries the browser-detected IANA zone used to pin "auto".
const TimezoneHeader = "X-Timezone"

const (
	defaultUpcomingDays = 30
	maxUpcomingDays     = 366
)

func (s *Server) listBirthdays(c *fiber.Ctx) error {
	records, err := s.repo.ListBirthdays(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	out := make([]birthdayJSON, 0, len(records))
	for _, r := range records {
		out = append(out, toBirthdayJSON(r))
	}
	return c.JSON(fiber.Map{"birthdays": out, "total": len(out)})
}

func (s *Server) getBirthday(c *fiber.Ctx) error {
	r, err := s.repo.GetBirthday(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toBirthdayJSON(*r))
}

func (s *Server) createBirthday(c *fiber.Ctx) error {
	var in birthdayInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	rec := domain.BirthdayRecord{UserID: userID(c), NotificationEnabled: true}
	in.apply(&rec, c.Get(TimezoneHeader))
	if err := rec.Validate(s.now()); err != nil {
		return err
	}
	if err := s.repo.CreateBirthday(c.UserContext(), &rec); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toBirthdayJSON(rec))
}

func (s *Server) updateBirthday(c *fiber.Ctx) error {
	var in birthdayInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ctx := c.UserContext()
	rec, err := s.repo.GetBirthday(ctx, userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	in.apply(rec, c.Get(TimezoneHeader))
	if err := rec.Validate(s.now()); err != nil {
		return err
	}
	if err := s.repo.UpdateBirthday(ctx, rec); err != nil {
		return err
	}
	return c.JSON(toBirthdayJSON(*rec))
}

func (s *Server) deleteBirthday(c *fiber.Ctx) error {
	n, err := s.repo.DeleteBirthdays(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	if n == 0 {
		return fiber.NewError(fiber.StatusNotFound, "not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) bulkDelete(c *fiber.Ctx) error {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.IDs) == 0 {
		return badRequest(errors.New("ids must not be empty"))
	}
	n, err := s.repo.DeleteBirthdays(c.UserContext(), userID(c), req.IDs...)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": n})
}

// todayBirthdays lists records whose birthday is today in their effective timezone.
func (s *Server) todayBirthdays(c *fiber.Ctx) error {
	list, err := s.sched.Upcoming(c.UserContext(), userID(c), s.now(), 0)
	if err != nil {
		return err
	}
	out := toUpcomingJSON(list)
	return c.JSON(fiber.Map{"birthdays": out, "count": len(out)})
}

func (s *Server) upcomingBirthdays(c *fiber.Ctx) error {
	days := defaultUpcomingDays
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxUpcomingDays {
			return fiber.NewError(fiber.StatusBadRequest, "days must be between 0 and 366")
		}
		days = n
	}
	list, err := s.sched.Upcoming(c.UserContext(), userID(c), s.now(), days)
	if err != nil {
		return err
	}
	out := toUpcomingJSON(list)
	return c.JSON(fiber.Map{"birthdays": out, "count": len(out), "days": days})
}
