package transfer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
)

var exportAt = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func sampleRecords() []domain.BirthdayRecord {
	return []domain.BirthdayRecord{
		{
			ID: "a", UserID: "u1",
			FirstName: "Anna", LastName: "Kowalska", BirthDate: "1990-03-15",
			Phone: "+48 600 000 000", NotificationEnabled: true,
			NotificationTimes: []string{"09:00:00", "18:30:00"},
			Timezone:          domain.Explicit("Europe/Warsaw"),
		},
		{
			ID: "b", UserID: "u1",
			FirstName: "Ben", LastName: "Ode", BirthDate: "1985-12-01",
			NotificationTime: "07:15:00",
			Timezone:         domain.ParseTimezone("disabled"),
		},
	}
}

func assertRecords(t *testing.T, got []domain.BirthdayRecord) {
	t.Helper()
	want := sampleRecords()
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.ID != "" || g.UserID != "" {
			t.Errorf("record %d: id/owner must not be imported, got %q/%q", i, g.ID, g.UserID)
		}
		if g.FirstName != w.FirstName || g.LastName != w.LastName || g.BirthDate != w.BirthDate {
			t.Errorf("record %d: got %s %s %s", i, g.FirstName, g.LastName, g.BirthDate)
		}
		if g.NotificationEnabled != w.NotificationEnabled {
			t.Errorf("record %d: enabled=%v, want %v", i, g.NotificationEnabled, w.NotificationEnabled)
		}
		if g.NotificationTime != w.NotificationTime {
			t.Errorf("record %d: legacy time %q, want %q", i, g.NotificationTime, w.NotificationTime)
		}
		if strings.Join(g.NotificationTimes, ",") != strings.Join(w.NotificationTimes, ",") {
			t.Errorf("record %d: times %v, want %v", i, g.NotificationTimes, w.NotificationTimes)
		}
		if g.Timezone != w.Timezone {
			t.Errorf("record %d: tz %+v, want %+v", i, g.Timezone, w.Timezone)
		}
	}
}

func TestExportImport(t *testing.T) {
	for _, f := range []Format{JSON, YAML, XLSX} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Export(&buf, f, sampleRecords(), exportAt); err != nil {
				t.Fatalf("export: %v", err)
			}
			got, err := Import(&buf, f)
			if err != nil {
				t.Fatalf("import: %v", err)
			}
			assertRecords(t, got)
		})
	}
}

func TestImportBareList(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		in := `[{"first_name":"Anna","last_name":"K","birth_date":"1990-03-15","notification_enabled":true}]`
		got, err := Import(strings.NewReader(in), JSON)
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		if len(got) != 1 || got[0].FirstName != "Anna" || !got[0].NotificationEnabled {
			t.Fatalf("unexpected %+v", got)
		}
	})
	t.Run("missing flag means enabled", func(t *testing.T) {
		in := `[{"first_name":"Anna","last_name":"K","birth_date":"1990-03-15"},{"first_name":"Ben","last_name":"O","birth_date":"1985-12-01","notification_enabled":false}]`
		got, err := Import(strings.NewReader(in), JSON)
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		if len(got) != 2 || !got[0].NotificationEnabled || got[1].NotificationEnabled {
			t.Fatalf("unexpected %+v", got)
		}
	})
	t.Run("yaml", func(t *testing.T) {
		in := "- first_name: Anna\n  last_name: K\n  birth_date: \"1990-03-15\"\n  timezone: auto\n"
		got, err := Import(strings.NewReader(in), YAML)
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		if len(got) != 1 || got[0].Timezone.Mode != domain.TZAuto || !got[0].NotificationEnabled {
			t.Fatalf("unexpected %+v", got)
		}
	})
}

func TestImportRejectsGarbage(t *testing.T) {
	if _, err := Import(strings.NewReader("{not json"), JSON); err == nil {
		t.Fatal("expected json error")
	}
	if _, err := Import(strings.NewReader("not a zip"), XLSX); err == nil {
		t.Fatal("expected xlsx error")
	}
	if _, err := Import(strings.NewReader(""), PDF); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("pdf import: got %v, want ErrUnsupportedFormat", err)
	}
}

func TestExportPDF(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, PDF, sampleRecords(), exportAt); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a pdf: %q", buf.Bytes()[:min(16, buf.Len())])
	}
}

func TestPDFRow(t *testing.T) {
	off := false
	row := pdfRow(Birthday{
		FirstName: "Zofia", LastName: "Łęcka", BirthDate: "1990-03-16",
		NotificationEnabled: &off,
	}, exportAt)
	if row[2] != "34" {
		t.Fatalf("age %q, want 34 the day before the birthday", row[2])
	}
	if row[4] != "off" {
		t.Fatalf("reminders %q, want off", row[4])
	}

	row = pdfRow(Birthday{
		FirstName: "Anna", LastName: "K", BirthDate: "1990-03-15",
		NotificationTimes: []string{"09:00:00"}, NotificationTime: "18:30:00",
	}, exportAt)
	if row[2] != "35" || row[4] != "09:00, 18:30" {
		t.Fatalf("unexpected row %q", row)
	}
}

func TestExportPDF_UTF8Font(t *testing.T) {
	font := os.Getenv("TEST_PDF_FONT")
	if font == "" {
		t.Skip("TEST_PDF_FONT not set")
	}
	recs := sampleRecords()
	recs[0].FirstName = "Мария"
	var buf bytes.Buffer
	if err := Export(&buf, PDF, recs, exportAt, WithFont(font)); err != nil {
		t.Fatalf("export: %v", err)
	}
}

func TestExportPDF_MissingFont(t *testing.T) {
	var buf bytes.Buffer
	err := Export(&buf, PDF, sampleRecords(), exportAt, WithFont(filepath.Join(t.TempDir(), "none.ttf")))
	if err == nil {
		t.Fatal("expected error for missing font file")
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": JSON, "JSON": JSON, "yml": YAML, "excel": XLSX, "pdf": PDF}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("csv"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("csv: got %v", err)
	}
	if got := XLSX.FileName(exportAt); got != "birthdays-2025-03-15.xlsx" {
		t.Fatalf("file name %q", got)
	}
}
