package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"shelfscan/internal/barcode"
)

// NewItem describes an item to insert.
type NewItem struct {
	Kind     string   `yaml:"kind" json:"kind"`
	Name     string   `yaml:"name" json:"name"`
	Serial   string   `yaml:"serial,omitempty" json:"serial,omitempty"`
	Location string   `yaml:"location,omitempty" json:"location,omitempty"`
	Status   string   `yaml:"status,omitempty" json:"status,omitempty"`
	Notes    string   `yaml:"notes,omitempty" json:"notes,omitempty"`
	Codes    []string `yaml:"codes,omitempty" json:"codes,omitempty"`
}

func (n NewItem) normalized() (NewItem, error) {
	n.Kind = NormalizeKind(n.Kind)
	if !ValidKind(n.Kind) {
		return n, fmt.Errorf("unknown item kind %q", n.Kind)
	}
	n.Name = NormalizePayload(n.Name)
	if n.Name == "" {
		return n, errors.New("item name is required")
	}
	n.Serial = NormalizePayload(n.Serial)
	n.Location = NormalizePayload(n.Location)
	n.Status = normalizeStatus(n.Status)
	if !validStatus(n.Status) {
		return n, fmt.Errorf("unknown item status %q", n.Status)
	}
	codes := make([]string, 0, len(n.Codes))
	seen := make(map[string]struct{}, len(n.Codes))
	for _, code := range n.Codes {
		code = NormalizePayload(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	n.Codes = codes
	return n, nil
}

// AddItem inserts an item together with its label codes.
func (s *Store) AddItem(ctx context.Context, in NewItem) (*Item, error) {
	ctx = ensureContext(ctx)
	in, err := in.normalized()
	if err != nil {
		return nil, err
	}

	var id int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		timestamp := s.timestamp()
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO items (kind, name, serial, location, status, notes, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.Kind,
			in.Name,
			nullableString(in.Serial),
			nullableString(in.Location),
			in.Status,
			nullableString(in.Notes),
			timestamp,
			timestamp,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		for _, code := range in.Codes {
			if _, err := tx.ExecContext(ctx, `INSERT INTO item_codes (code, item_id, created_at) VALUES (?, ?, ?)`, code, id, timestamp); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: %s", ErrDuplicateCode, code)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return nil, err
		}
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return s.GetItem(ctx, id)
}

// AddCode binds an additional label code to an existing item.
func (s *Store) AddCode(ctx context.Context, itemID int64, code string) error {
	code = NormalizePayload(code)
	if code == "" {
		return errors.New("code is empty")
	}
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return err
	}
	_, err := s.execWithRetry(ctx, `INSERT INTO item_codes (code, item_id, created_at) VALUES (?, ?, ?)`, code, itemID, s.timestamp())
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, code)
	}
	if err != nil {
		return fmt.Errorf("insert code: %w", err)
	}
	return nil
}

// RemoveCode unbinds a code. It reports whether a row was removed.
func (s *Store) RemoveCode(ctx context.Context, code string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM item_codes WHERE code = ?`, NormalizePayload(code))
	if err != nil {
		return false, fmt.Errorf("remove code: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// SetStatus updates an item's lifecycle status.
func (s *Store) SetStatus(ctx context.Context, id int64, status string) error {
	status = normalizeStatus(status)
	if !validStatus(status) {
		return fmt.Errorf("unknown item status %q", status)
	}
	res, err := s.execWithRetry(ctx, `UPDATE items SET status = ?, updated_at = ? WHERE id = ?`, status, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetItem fetches an item and its codes by identifier.
func (s *Store) GetItem(ctx context.Context, id int64) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if item.Codes, err = s.codesFor(ctx, item.ID); err != nil {
		return nil, err
	}
	return item, nil
}

// ListFilter narrows ListItems.
type ListFilter struct {
	Kind   string
	Status string
	Limit  int
}

// ListItems returns items ordered by identifier.
func (s *Store) ListItems(ctx context.Context, filter ListFilter) ([]*Item, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if kind := NormalizeKind(filter.Kind); kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, kind)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, normalizeStatus(status))
	}
	query := `SELECT ` + itemColumns + ` FROM items`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, item := range items {
		if item.Codes, err = s.codesFor(ctx, item.ID); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// Counts returns the number of items per kind.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT kind, COUNT(1) FROM items GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("item counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[kind] = count
	}
	return counts, rows.Err()
}

func (s *Store) codesFor(ctx context.Context, itemID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code FROM item_codes WHERE item_id = ? ORDER BY code`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// FindByCode resolves a payload. Registered codes win, then references
// parsed from the payload, then serial numbers.
func (s *Store) FindByCode(ctx context.Context, payload string) (*barcode.ItemRef, error) {
	item, err := s.resolve(ensureContext(ctx), NormalizePayload(payload))
	if err != nil {
		return nil, err
	}
	return item.Ref(), nil
}

func (s *Store) resolve(ctx context.Context, payload string) (*Item, error) {
	if payload == "" {
		return nil, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT i.id, i.kind, i.name, i.serial, i.location, i.status, i.notes, i.created_at, i.updated_at
         FROM item_codes c JOIN items i ON i.id = c.item_id WHERE c.code = ?`, payload)
	item, err := scanItem(row)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find by code: %w", err)
	}

	if ref, ok := ParseReference(payload); ok {
		row = s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ? AND kind = ?`, ref.ID, ref.Kind)
		item, err = scanItem(row)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("find by reference: %w", err)
		}
	}

	row = s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE serial = ? COLLATE NOCASE ORDER BY id LIMIT 1`, payload)
	item, err = scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by serial: %w", err)
	}
	return item, nil
}
