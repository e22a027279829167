package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shelfscan/internal/barcode"
	"shelfscan/internal/inventory"
	"shelfscan/internal/logging"
)

// Status is the outcome of a lookup.
type Status string

const (
	StatusFound       Status = "found"
	StatusNotFound    Status = "not_found"
	StatusUnavailable Status = "unavailable"
)

// DefaultTimeout bounds a single repository call when none is configured.
const DefaultTimeout = 5 * time.Second

// Result carries the event (with MatchedItem populated when found) and the outcome.
type Result struct {
	Event  barcode.ScanEvent `json:"event"`
	Status Status            `json:"status"`
}

// Options configures an Adapter.
type Options struct {
	Timeout time.Duration
	// History receives every outcome. Nil disables recording.
	History   inventory.HistoryRecorder
	SessionID string
	Logger    *slog.Logger
}

// Adapter resolves scan events against a repository.
type Adapter struct {
	repo      inventory.Repository
	timeout   time.Duration
	history   inventory.HistoryRecorder
	sessionID string
	logger    *slog.Logger
}

// New constructs an adapter.
func New(repo inventory.Repository, opts Options) *Adapter {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Adapter{
		repo:      repo,
		timeout:   opts.Timeout,
		history:   opts.History,
		sessionID: opts.SessionID,
		logger:    logging.WithSession(logging.NewComponentLogger(opts.Logger, "lookup"), opts.SessionID),
	}
}

// WithSession returns a copy of the adapter that tags history rows with sessionID.
func (a *Adapter) WithSession(sessionID string) *Adapter {
	clone := *a
	clone.sessionID = sessionID
	clone.logger = logging.WithSession(a.logger, sessionID)
	return &clone
}

// Resolve looks up the event payload. The returned error is non-nil only for
// StatusUnavailable and wraps barcode.ErrLookupUnavailable.
func (a *Adapter) Resolve(ctx context.Context, event barcode.ScanEvent) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if a == nil || a.repo == nil {
		return Result{Event: event, Status: StatusUnavailable}, fmt.Errorf("%w: no repository configured", barcode.ErrLookupUnavailable)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, a.timeout)
	item, err := a.repo.FindByCode(lookupCtx, event.Payload)
	cancel()

	var (
		result    = Result{Event: event}
		lookupErr error
	)
	switch {
	case err == nil && item != nil:
		result.Event = event.WithItem(item)
		result.Status = StatusFound
		a.logger.Info("item matched",
			logging.String(logging.FieldEventID, event.ID),
			logging.Payload(event.Payload),
			logging.CodeFormat(event.Format),
			logging.Int64("item_id", item.ID),
			logging.String("item_name", item.Name),
		)
	case err == nil, errors.Is(err, inventory.ErrNotFound):
		result.Status = StatusNotFound
		a.logger.Info("no inventory match",
			logging.String(logging.FieldEventID, event.ID),
			logging.Payload(event.Payload),
			logging.CodeFormat(event.Format),
		)
	default:
		result.Status = StatusUnavailable
		lookupErr = fmt.Errorf("%w: %w", barcode.ErrLookupUnavailable, err)
		logging.WarnWithContext(a.logger, "inventory lookup failed", "lookup_unavailable",
			logging.String(logging.FieldEventID, event.ID),
			logging.Payload(event.Payload),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check inventory backend connectivity"),
			logging.String(logging.FieldImpact, "scan shown without item details"),
		)
	}

	a.record(ctx, result)
	return result, lookupErr
}

// ResolveAll resolves events sequentially in order.
func (a *Adapter) ResolveAll(ctx context.Context, events []barcode.ScanEvent) []Result {
	out := make([]Result, 0, len(events))
	for _, event := range events {
		res, _ := a.Resolve(ctx, event)
		out = append(out, res)
	}
	return out
}

func (a *Adapter) record(ctx context.Context, result Result) {
	if a.history == nil {
		return
	}
	rec := inventory.ScanRecord{
		EventID:   result.Event.ID,
		SessionID: a.sessionID,
		Payload:   result.Event.Payload,
		Format:    result.Event.Format,
		Status:    string(result.Status),
		ScannedAt: result.Event.EmittedAt,
	}
	if result.Event.MatchedItem != nil && result.Event.MatchedItem.ID > 0 {
		id := result.Event.MatchedItem.ID
		rec.ItemID = &id
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()
	if err := a.history.RecordScan(recordCtx, rec); err != nil {
		a.logger.Debug("scan history not recorded", logging.Error(err))
	}
}
