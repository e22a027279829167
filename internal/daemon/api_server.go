package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"shelfscan/internal/api"
	"shelfscan/internal/barcode"
	"shelfscan/internal/camera"
	"shelfscan/internal/config"
	"shelfscan/internal/frame"
	"shelfscan/internal/imageio"
	"shelfscan/internal/logging"
	"shelfscan/internal/lookup"
	"shelfscan/internal/session"
)

const (
	maxUploadBytes = 32 << 20
	maxFrameBytes  = 64 << 20
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	router *mux.Router

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.router = srv.routes(cfg.Paths.APIToken)
	srv.server = &http.Server{
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) *mux.Router {
	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found", "")
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})
	router := mux.NewRouter()
	router.NotFoundHandler = notFound
	router.MethodNotAllowedHandler = notAllowed

	// Subrouters do not inherit the parent's error handlers.
	r := router.PathPrefix("/api").Subrouter()
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notAllowed
	r.Use(s.requestLogger, authMiddleware(token))
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/session/start", s.handleSessionStart).Methods(http.MethodPost)
	r.HandleFunc("/session/stop", s.handleSessionStop).Methods(http.MethodPost)
	r.HandleFunc("/session/frame", s.handleSessionFrame).Methods(http.MethodPost)
	r.HandleFunc("/latest", s.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/latest/frame.png", s.handleLatestFrame).Methods(http.MethodGet)
	r.HandleFunc("/scan", s.handleScan).Methods(http.MethodPost)
	r.HandleFunc("/items/{code}", s.handleItem).Methods(http.MethodGet)
	r.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	return router
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *apiServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(r.Context(), uuid.NewString())
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("duration", time.Since(start)),
		)
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		LockFilePath:   status.LockFilePath,
		Inventory:      status.Inventory,
		EnabledFormats: status.EnabledFormats,
		Session:        sessionStatus(status.SessionActive, status.Mode, status.SessionID, status.State, status.Settings),
		Dependencies:   api.FromDependencies(status.Dependencies),
		Checks:         api.FromChecks(status.Checks),
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func sessionStatus(active bool, mode session.Mode, id string, state session.State, settings session.Settings) api.SessionStatus {
	return api.SessionStatus{
		Active:   active,
		Mode:     string(mode),
		ID:       id,
		State:    string(state),
		Settings: api.FromSettings(settings),
	}
}

func (s *apiServer) currentSession() api.SessionStatus {
	snap := s.daemon.Latest()
	sess := s.daemon.deps.Session
	return sessionStatus(sess.Active(), sess.Mode(), snap.SessionID, snap.State, sess.CurrentSettings())
}

func (s *apiServer) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req api.StartSessionRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read request body", err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}
	if _, err := s.daemon.StartSession(r.Context(), req); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: s.currentSession(), Message: "session started"})
}

func (s *apiServer) writeSessionError(w http.ResponseWriter, err error) {
	var camErr *camera.Error
	switch {
	case errors.Is(err, barcode.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
	case errors.As(err, &camErr):
		status := http.StatusServiceUnavailable
		if camErr.Kind == camera.KindBusy {
			status = http.StatusConflict
		}
		s.writeError(w, status, err.Error(), camErr.Guidance())
	case errors.Is(err, session.ErrNoSource):
		s.writeError(w, http.StatusConflict, err.Error(), "configure [camera] or use mode single_image")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func (s *apiServer) handleSessionStop(w http.ResponseWriter, _ *http.Request) {
	if err := s.daemon.StopSession(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: s.currentSession(), Message: "session stopped"})
}

func (s *apiServer) handleSessionFrame(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	width, _ := strconv.Atoi(query.Get("width"))
	height, _ := strconv.Atoi(query.Get("height"))
	layout := frame.Layout(strings.TrimSpace(query.Get("layout")))
	if layout == "" {
		layout = frame.LayoutRGB24
	}
	stride, _ := strconv.Atoi(query.Get("stride"))
	if stride <= 0 {
		stride = width * layout.BytesPerPixel()
	}

	pix, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBytes+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read frame body", err.Error())
		return
	}
	if len(pix) > maxFrameBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge, "frame too large", "")
		return
	}
	f := &frame.Frame{Width: width, Height: height, Stride: stride, Layout: layout, Pix: pix}

	switch err := s.daemon.PushFrame(f); {
	case err == nil:
		s.writeJSON(w, http.StatusAccepted, api.FromSnapshot(s.daemon.Latest()))
	case errors.Is(err, barcode.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error(), "send width, height and layout query parameters")
	case errors.Is(err, ErrPushUnsupported):
		s.writeError(w, http.StatusConflict, err.Error(), `set camera.source = "push"`)
	case errors.Is(err, camera.ErrNotStreaming):
		s.writeError(w, http.StatusConflict, err.Error(), "start a live session first")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func (s *apiServer) handleLatest(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.FromSnapshot(s.daemon.Latest()))
}

func (s *apiServer) handleLatestFrame(w http.ResponseWriter, _ *http.Request) {
	snap := s.daemon.Latest()
	if snap.Frame == nil {
		s.writeError(w, http.StatusNotFound, "no frame available", "start a session first")
		return
	}
	var buf bytes.Buffer
	if err := imageio.EncodePNG(&buf, snap.Frame); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(snap.FrameSeq, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *apiServer) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	data, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "upload too large", "")
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	img, _, err := imageio.DecodeBytes(data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "upload a PNG, JPEG, BMP, GIF, TIFF or WebP image")
		return
	}
	codes, results, err := s.daemon.Scan(r.Context(), img)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, barcode.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err.Error(), "")
		return
	}
	s.writeJSON(w, http.StatusOK, api.ScanResponse{
		Width:   img.Width,
		Height:  img.Height,
		Codes:   api.FromCodes(codes),
		Results: api.FromResults(results),
	})
}

// readUpload accepts a multipart form with an "image" (or first) file part,
// or the raw image as the request body.
func readUpload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, errors.New("empty upload")
		}
		return data, nil
	}
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("read multipart: %w", err)
	}
	var fallback []byte
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read multipart: %w", err)
		}
		if part.FileName() == "" && part.FormName() != "image" {
			_ = part.Close()
			continue
		}
		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "image" {
			return data, nil
		}
		if fallback == nil {
			fallback = data
		}
	}
	if len(fallback) == 0 {
		return nil, errors.New("multipart upload has no image part")
	}
	return fallback, nil
}

func (s *apiServer) handleItem(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	res, err := s.daemon.LookupCode(r.Context(), code)
	switch {
	case errors.Is(err, barcode.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	case err != nil || res.Status == lookup.StatusUnavailable:
		detail := "inventory unavailable"
		if err != nil {
			detail = err.Error()
		}
		s.writeError(w, http.StatusServiceUnavailable, detail, "check the inventory backend")
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemResponse{
		Code:   res.Event.Payload,
		Status: string(res.Status),
		Item:   api.FromItemRef(res.Event.MatchedItem),
	})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	records, err := s.daemon.History(r.Context(), limit)
	if err != nil {
		if errors.Is(err, ErrHistoryUnavailable) {
			s.writeError(w, http.StatusNotFound, err.Error(), "set inventory.record_history = true")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Entries: api.FromScanRecords(records)})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message, hint string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Hint: hint})
}
