// Package transfer converts birthday records to and from portable file formats.
package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/domain"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	XLSX Format = "xlsx"
	PDF  Format = "pdf"
)

// ParseFormat accepts a format name or common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "xlsx", "excel":
		return XLSX, nil
	case "pdf":
		return PDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

func (f Format) ContentType() string {
	switch f {
	case YAML:
		return "application/yaml"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case PDF:
		return "application/pdf"
	}
	return "application/json"
}

// FileName suggests a download name stamped with the export day.
func (f Format) FileName(now time.Time) string {
	return fmt.Sprintf("birthdays-%s.%s", now.Format("2006-01-02"), string(f))
}

// Birthday is the portable form of a record.
type Birthday struct {
	FirstName           string   `json:"first_name" yaml:"first_name"`
	LastName            string   `json:"last_name" yaml:"last_name"`
	BirthDate           string   `json:"birth_date" yaml:"birth_date"`
	Phone               string   `json:"phone,omitempty" yaml:"phone,omitempty"`
	Email               string   `json:"email,omitempty" yaml:"email,omitempty"`
	Notes               string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	NotificationEnabled *bool    `json:"notification_enabled,omitempty" yaml:"notification_enabled,omitempty"` // nil means enabled
	NotificationTime    string   `json:"notification_time,omitempty" yaml:"notification_time,omitempty"`
	NotificationTimes   []string `json:"notification_times,omitempty" yaml:"notification_times,omitempty"`
	Timezone            string   `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// Document is the JSON/YAML envelope.
type Document struct {
	Version    int        `json:"version" yaml:"version"`
	ExportedAt time.Time  `json:"exported_at" yaml:"exported_at"`
	Birthdays  []Birthday `json:"birthdays" yaml:"birthdays"`
}

const documentVersion = 1

func fromRecord(r domain.BirthdayRecord) Birthday {
	enabled := r.NotificationEnabled
	return Birthday{
		FirstName:           r.FirstName,
		LastName:            r.LastName,
		BirthDate:           r.BirthDate,
		Phone:               r.Phone,
		Email:               r.Email,
		Notes:               r.Notes,
		NotificationEnabled: &enabled,
		NotificationTime:    r.NotificationTime,
		NotificationTimes:   r.NotificationTimes,
		Timezone:            r.Timezone.String(),
	}
}

func (b Birthday) record() domain.BirthdayRecord {
	return domain.BirthdayRecord{
		FirstName:           b.FirstName,
		LastName:            b.LastName,
		BirthDate:           b.BirthDate,
		Phone:               b.Phone,
		Email:               b.Email,
		Notes:               b.Notes,
		NotificationEnabled: b.enabled(),
		NotificationTime:    b.NotificationTime,
		NotificationTimes:   b.NotificationTimes,
		Timezone:            domain.ParseTimezone(b.Timezone),
	}
}

func (b Birthday) enabled() bool {
	return b.NotificationEnabled == nil || *b.NotificationEnabled
}

type exportOptions struct {
	fontPath string
}

// ExportOption customizes Export.
type ExportOption func(*exportOptions)

// WithFont sets a UTF-8 TrueType font file used for PDF output.
func WithFont(path string) ExportOption { return func(o *exportOptions) { o.fontPath = path } }

// Export writes records in the given format.
func Export(w io.Writer, format Format, records []domain.BirthdayRecord, now time.Time, opts ...ExportOption) error {
	var o exportOptions
	for _, fn := range opts {
		fn(&o)
	}

	doc := Document{Version: documentVersion, ExportedAt: now.UTC(), Birthdays: make([]Birthday, 0, len(records))}
	for _, r := range records {
		doc.Birthdays = append(doc.Birthdays, fromRecord(r))
	}

	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case YAML:
		b, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case XLSX:
		return writeXLSX(w, doc.Birthdays)
	case PDF:
		return writePDF(w, doc.Birthdays, now, o.fontPath)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Import reads records from r. Returned records carry no id or owner and are not validated.
// Both an enveloped document and a bare list are accepted for JSON and YAML.
func Import(r io.Reader, format Format) ([]domain.BirthdayRecord, error) {
	var items []Birthday
	switch format {
	case JSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		items, err = decodeJSON(data)
		if err != nil {
			return nil, err
		}
	case YAML:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		items, err = decodeYAML(data)
		if err != nil {
			return nil, err
		}
	case XLSX:
		var err error
		items, err = readXLSX(r)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w for import: %q", ErrUnsupportedFormat, format)
	}

	out := make([]domain.BirthdayRecord, 0, len(items))
	for _, it := range items {
		out = append(out, it.record())
	}
	return out, nil
}

func decodeJSON(data []byte) ([]Birthday, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var items []Birthday
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return items, nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return doc.Birthdays, nil
}

func decodeYAML(data []byte) ([]Birthday, error) {
	var items []Birthday
	if err := yaml.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return doc.Birthdays, nil
}
