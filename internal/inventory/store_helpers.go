package inventory

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const itemColumns = "id, kind, name, serial, location, status, notes, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id         int64
		kind       string
		name       string
		serial     sql.NullString
		location   sql.NullString
		status     string
		notes      sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &kind, &name, &serial, &location, &status, &notes, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	item := &Item{
		ID:       id,
		Kind:     kind,
		Name:     name,
		Serial:   serial.String,
		Location: location.String,
		Status:   status,
		Notes:    notes.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableInt(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func normalizeStatus(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return StatusActive
	}
	return status
}

func validStatus(status string) bool {
	switch status {
	case StatusActive, StatusRetired, StatusMissing:
		return true
	}
	return false
}
