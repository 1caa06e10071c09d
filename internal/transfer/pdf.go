package transfer

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
)

const utf8Family = "unicode"

var pdfColumns = []struct {
	title string
	width float64
}{
	{"Name", 60},
	{"Birth date", 30},
	{"Age", 15},
	{"Phone", 35},
	{"Reminders", 50},
}

// writePDF renders a table of items. The core Helvetica font only covers cp1252,
// so names in other scripts need a TrueType font passed through WithFont.
func writePDF(w io.Writer, items []Birthday, now time.Time, fontPath string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	family := "Helvetica"
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if fontPath != "" {
		ttf, err := os.ReadFile(fontPath)
		if err != nil {
			return fmt.Errorf("read pdf font: %w", err)
		}
		pdf.AddUTF8FontFromBytes(utf8Family, "", ttf)
		pdf.AddUTF8FontFromBytes(utf8Family, "B", ttf)
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("load pdf font: %w", err)
		}
		family = utf8Family
		tr = func(s string) string { return s }
	}

	pdf.SetTitle("Birthdays", true)
	pdf.AddPage()

	pdf.SetFont(family, "B", 16)
	pdf.CellFormat(0, 10, "Birthdays", "", 1, "L", false, 0, "")
	pdf.SetFont(family, "", 9)
	pdf.CellFormat(0, 6, "Exported "+now.UTC().Format("2006-01-02 15:04")+" UTC", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont(family, "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range pdfColumns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(family, "", 10)
	for _, b := range items {
		cells := pdfRow(b, now)
		for i, c := range pdfColumns {
			pdf.CellFormat(c.width, 7, tr(cells[i]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}

func pdfRow(b Birthday, now time.Time) []string {
	age := ""
	if bd, err := domain.ParseDate(b.BirthDate); err == nil {
		age = strconv.Itoa(domain.AgeOn(bd, now))
	}
	reminders := "off"
	if b.enabled() {
		times := append([]string{}, b.NotificationTimes...)
		if b.NotificationTime != "" {
			times = append(times, b.NotificationTime)
		}
		for i, t := range times {
			times[i] = domain.ShortClock(t)
		}
		reminders = strings.Join(times, ", ")
		if reminders == "" {
			reminders = "default"
		}
	}
	return []string{
		strings.TrimSpace(b.FirstName + " " + b.LastName),
		b.BirthDate,
		age,
		b.Phone,
		reminders,
	}
}
