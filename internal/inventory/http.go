package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"shelfscan/internal/barcode"
	"shelfscan/internal/config"
)

// HTTPDoer describes the HTTP client used by HTTPRepository.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPRepository resolves payloads against a remote inventory service via
// GET {base}/items/by-code/{payload}.
type HTTPRepository struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// NewHTTPRepository constructs a repository for baseURL. A nil client uses
// http.DefaultClient; callers bound request time through ctx.
func NewHTTPRepository(baseURL, apiKey string, client HTTPDoer) *HTTPRepository {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRepository{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
	}
}

type remoteItem struct {
	ID       int64  `json:"id"`
	Kind     string `json:"kind"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Serial   string `json:"serial_number"`
	Location string `json:"location"`
	Status   string `json:"status"`
}

// FindByCode implements Repository.
func (r *HTTPRepository) FindByCode(ctx context.Context, payload string) (*barcode.ItemRef, error) {
	payload = NormalizePayload(payload)
	if payload == "" {
		return nil, ErrNotFound
	}
	endpoint := fmt.Sprintf("%s/items/by-code/%s", r.baseURL, url.PathEscape(payload))
	req, err := http.NewRequestWithContext(ensureContext(ctx), http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build inventory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("X-API-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inventory request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrNotFound
	case resp.StatusCode >= http.StatusMultipleChoices:
		return nil, fmt.Errorf("inventory service returned %d", resp.StatusCode)
	}

	var item remoteItem
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode inventory response: %w", err)
	}
	kind := item.Kind
	if kind == "" {
		kind = item.Type
	}
	return &barcode.ItemRef{
		ID:       item.ID,
		Kind:     NormalizeKind(kind),
		Name:     item.Name,
		Serial:   item.Serial,
		Location: item.Location,
		Status:   item.Status,
	}, nil
}

// NewRepository builds the repository selected by the inventory backend
// setting. The returned closer releases backend resources.
func NewRepository(cfg *config.Config) (Repository, io.Closer, error) {
	switch cfg.Inventory.Backend {
	case config.BackendHTTP:
		return NewHTTPRepository(cfg.Inventory.BaseURL, cfg.Inventory.APIKey, nil), nopCloser{}, nil
	default:
		store, err := Open(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
