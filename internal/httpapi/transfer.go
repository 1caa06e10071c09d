package httpapi

import (
	"bytes"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/transfer"
)

type importError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

func (s *Server) export(c *fiber.Ctx) error {
	format, err := transfer.ParseFormat(c.Query("format"))
	if err != nil {
		return err
	}
	records, err := s.repo.ListBirthdays(c.UserContext(), userID(c))
	if err != nil {
		return err
	}

	now := s.now()
	var buf bytes.Buffer
	if err := transfer.Export(&buf, format, records, now, transfer.WithFont(s.pdfFont)); err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}
	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", format.FileName(now)))
	return c.Send(buf.Bytes())
}

// importRecords reads the request body in the given format and creates every valid
// row. Invalid rows are reported by 1-based position and do not stop the import.
func (s *Server) importRecords(c *fiber.Ctx) error {
	format, err := transfer.ParseFormat(c.Query("format"))
	if err != nil {
		return err
	}
	records, err := transfer.Import(bytes.NewReader(c.Body()), format)
	if err != nil {
		return badRequest(err)
	}

	ctx := c.UserContext()
	uid := userID(c)
	now := s.now()
	imported := 0
	rowErrors := make([]importError, 0)
	for i := range records {
		rec := records[i]
		rec.UserID = uid
		if err := rec.Validate(now); err != nil {
			rowErrors = append(rowErrors, importError{Row: i + 1, Error: err.Error()})
			continue
		}
		if err := s.repo.CreateBirthday(ctx, &rec); err != nil {
			return fmt.Errorf("import row %d: %w", i+1, err)
		}
		imported++
	}

	s.log.Info("birthdays imported",
		zap.String("user_id", uid),
		zap.String("format", string(format)),
		zap.Int("imported", imported),
		zap.Int("rejected", len(rowErrors)),
	)
	return c.JSON(fiber.Map{"imported": imported, "errors": rowErrors})
}
