package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shelfscan/internal/frame"
)

// ErrDaemonUnreachable wraps transport failures talking to the daemon.
var ErrDaemonUnreachable = errors.New("shelfscan daemon unreachable")

// Error is a non-2xx response from the daemon API.
type Error struct {
	StatusCode int
	Message    string
	Hint       string
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("daemon returned %d: %s (%s)", e.StatusCode, e.Message, e.Hint)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an API error with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Client talks to the daemon HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for baseURL. A nil httpClient uses a client with
// a 30 second timeout.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    httpClient,
	}
}

// BaseURLForBind turns a listen address into a URL clients can dial.
// Wildcard hosts are replaced by the loopback address.
func BaseURLForBind(bind string) string {
	bind = strings.TrimSpace(bind)
	if strings.HasPrefix(bind, "http://") || strings.HasPrefix(bind, "https://") {
		return strings.TrimRight(bind, "/")
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartSession starts (or restarts) the scan session.
func (c *Client) StartSession(ctx context.Context, req StartSessionRequest) (*SessionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var resp SessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/session/start", bytes.NewReader(body), "application/json", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopSession stops the scan session.
func (c *Client) StopSession(ctx context.Context) (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/session/stop", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Latest fetches the latest-result slot.
func (c *Client) Latest(ctx context.Context) (*LatestResult, error) {
	var resp LatestResult
	if err := c.do(ctx, http.MethodGet, "/api/latest", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LatestFrame fetches the newest annotated frame as PNG bytes.
func (c *Client) LatestFrame(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.do(ctx, http.MethodGet, "/api/latest/frame.png", nil, "", &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PushFrame hands a raw frame to a live session that is fed externally.
func (c *Client) PushFrame(ctx context.Context, f *frame.Frame) (*LatestResult, error) {
	query := url.Values{}
	query.Set("width", strconv.Itoa(f.Width))
	query.Set("height", strconv.Itoa(f.Height))
	query.Set("layout", string(f.Layout))
	query.Set("stride", strconv.Itoa(f.Stride))
	var resp LatestResult
	if err := c.do(ctx, http.MethodPost, "/api/session/frame?"+query.Encode(), bytes.NewReader(f.Pix), "application/octet-stream", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Scan uploads an encoded image and returns every code with its lookup result.
func (c *Client) Scan(ctx context.Context, data []byte) (*ScanResponse, error) {
	var resp ScanResponse
	if err := c.do(ctx, http.MethodPost, "/api/scan", bytes.NewReader(data), http.DetectContentType(data), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Item looks up a code directly.
func (c *Client) Item(ctx context.Context, code string) (*ItemResponse, error) {
	var resp ItemResponse
	if err := c.do(ctx, http.MethodGet, "/api/items/"+url.PathEscape(code), nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History fetches recent scan history, newest first.
func (c *Client) History(ctx context.Context, limit int) (*HistoryResponse, error) {
	path := "/api/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp HistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDaemonUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload ErrorResponse
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil && json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Hint = payload.Hint
		}
		return apiErr
	}

	switch dst := out.(type) {
	case nil:
		return nil
	case *bytes.Buffer:
		if _, err := dst.ReadFrom(resp.Body); err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}
