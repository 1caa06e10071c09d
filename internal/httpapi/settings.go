package httpapi

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
)

func (s *Server) loadSettings(c *fiber.Ctx) (domain.UserSettings, error) {
	uid := userID(c)
	rows, err := s.repo.ListSettings(c.UserContext(), uid)
	if err != nil {
		return domain.UserSettings{}, err
	}
	settings, problems := domain.FoldSettings(rows)
	for _, p := range problems {
		s.log.Warn("ignoring malformed setting", zap.String("user_id", uid), zap.Error(p))
	}
	us := settings[uid]
	us.UserID = uid
	return us, nil
}

func (s *Server) getSettings(c *fiber.Ctx) error {
	us, err := s.loadSettings(c)
	if err != nil {
		return err
	}
	return c.JSON(toSettingsJSON(us))
}

func (s *Server) putSettings(c *fiber.Ctx) error {
	var patch domain.SettingsPatch
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if patch.Timezone != nil && strings.EqualFold(strings.TrimSpace(*patch.Timezone), "auto") {
		if detected := c.Get(TimezoneHeader); detected != "" {
			if zone, err := domain.ValidateTZ(detected); err == nil {
				patch.Timezone = &zone
			}
		}
	}
	kv, err := patch.Rows()
	if err != nil {
		return badRequest(err)
	}
	if len(kv) > 0 {
		if err := s.repo.PutSettings(c.UserContext(), userID(c), kv); err != nil {
			return err
		}
	}
	return s.getSettings(c)
}

func (s *Server) addPushToken(c *fiber.Ctx) error {
	var req struct {
		Token      string `json:"token"`
		DeviceInfo string `json:"device_info"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "token is required")
	}
	ep := domain.PushEndpoint{
		Token:      req.Token,
		UserID:     userID(c),
		DeviceInfo: req.DeviceInfo,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.AddPushToken(c.UserContext(), ep); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"token": ep.Token, "created_at": ep.CreatedAt.Format(time.RFC3339)})
}

func (s *Server) deletePushToken(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Token) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "token is required")
	}
	n, err := s.repo.DeletePushToken(c.UserContext(), userID(c), strings.TrimSpace(req.Token))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": n})
}
