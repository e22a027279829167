package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shelfscan/internal/barcode"
)

// RecordScan appends a lookup outcome to the scan history.
func (s *Store) RecordScan(ctx context.Context, rec ScanRecord) error {
	scannedAt := rec.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = s.now()
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO scan_history (event_id, session_id, payload, format, status, item_id, scanned_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.EventID,
		nullableString(rec.SessionID),
		rec.Payload,
		string(rec.Format),
		rec.Status,
		nullableInt(rec.ItemID),
		formatTime(scannedAt),
	)
	if err != nil {
		return fmt.Errorf("record scan: %w", err)
	}
	return nil
}

// History returns the most recent scans first.
func (s *Store) History(ctx context.Context, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, event_id, session_id, payload, format, status, item_id, scanned_at
         FROM scan_history ORDER BY scanned_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []ScanRecord
	for rows.Next() {
		var (
			rec       ScanRecord
			sessionID sql.NullString
			format    string
			itemID    sql.NullInt64
			scanned   string
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &sessionID, &rec.Payload, &format, &rec.Status, &itemID, &scanned); err != nil {
			return nil, err
		}
		rec.SessionID = sessionID.String
		rec.Format = barcode.Format(format)
		if itemID.Valid {
			id := itemID.Int64
			rec.ItemID = &id
		}
		if ts, err := parseTimeString(scanned); err == nil {
			rec.ScannedAt = ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneHistory deletes scans older than cutoff and returns the number removed.
func (s *Store) PruneHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM scan_history WHERE scanned_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}
