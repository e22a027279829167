package inventory

import (
	"context"
	"time"

	"shelfscan/internal/barcode"
)

// Item statuses.
const (
	StatusActive  = "active"
	StatusRetired = "retired"
	StatusMissing = "missing"
)

// Item is an inventory record.
type Item struct {
	ID        int64
	Kind      string
	Name      string
	Serial    string
	Location  string
	Status    string
	Notes     string
	Codes     []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ref converts the item to the reference attached to scan events.
func (i *Item) Ref() *barcode.ItemRef {
	if i == nil {
		return nil
	}
	return &barcode.ItemRef{
		ID:       i.ID,
		Kind:     i.Kind,
		Name:     i.Name,
		Serial:   i.Serial,
		Location: i.Location,
		Status:   i.Status,
	}
}

// ScanRecord is one row of scan history.
type ScanRecord struct {
	ID        int64
	EventID   string
	SessionID string
	Payload   string
	Format    barcode.Format
	Status    string
	ItemID    *int64
	ScannedAt time.Time
}

// Repository resolves payloads to items. Implementations return ErrNotFound
// for unknown payloads and any other error for infrastructure failures.
type Repository interface {
	FindByCode(ctx context.Context, payload string) (*barcode.ItemRef, error)
}

// HistoryRecorder persists lookup outcomes.
type HistoryRecorder interface {
	RecordScan(ctx context.Context, rec ScanRecord) error
}
