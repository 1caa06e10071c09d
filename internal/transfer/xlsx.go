package transfer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Birthdays"

var xlsxHeader = []string{
	"First name", "Last name", "Birth date", "Phone", "Email", "Notes",
	"Notifications", "Notification time", "Notification times", "Timezone",
}

func writeXLSX(w io.Writer, items []Birthday) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	header := make([]interface{}, len(xlsxHeader))
	for i, h := range xlsxHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}

	for i, b := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		enabled := "no"
		if b.enabled() {
			enabled = "yes"
		}
		row := []interface{}{
			b.FirstName, b.LastName, b.BirthDate, b.Phone, b.Email, b.Notes,
			enabled, b.NotificationTime, strings.Join(b.NotificationTimes, ", "), b.Timezone,
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// readXLSX reads the first sheet. Columns are located by header name so extra or
// reordered columns are tolerated.
func readXLSX(r io.Reader) ([]Birthday, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := make(map[string]int)
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"first name", "last name", "birth date"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("xlsx header is missing %q", required)
		}
	}
	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []Birthday
	for _, row := range rows[1:] {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		b := Birthday{
			FirstName:        get(row, "first name"),
			LastName:         get(row, "last name"),
			BirthDate:        get(row, "birth date"),
			Phone:            get(row, "phone"),
			Email:            get(row, "email"),
			Notes:            get(row, "notes"),
			NotificationTime: get(row, "notification time"),
			Timezone:         get(row, "timezone"),
		}
		enabled := false
		switch strings.ToLower(get(row, "notifications")) {
		case "", "yes", "true", "1", "y":
			enabled = true
		}
		b.NotificationEnabled = &enabled
		for _, t := range strings.Split(get(row, "notification times"), ",") {
			if t = strings.TrimSpace(t); t != "" {
				b.NotificationTimes = append(b.NotificationTimes, t)
			}
		}
		out = append(out, b)
	}
	return out, nil
}
