package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sagarc03/stashbox"
	"github.com/sagarc03/stashbox/metrics"
)

// Service is the part of stashbox.Service the handlers use.
type Service interface {
	Authorizer
	Upload(ctx context.Context, tok stashbox.AccessToken, up stashbox.Upload) (stashbox.StoredObject, error)
	Open(ctx context.Context, name string) (stashbox.StoredObject, stashbox.Blob, error)
	RecordView(ctx context.Context, ev stashbox.ViewEvent)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers" yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
}

type HandlerConfig struct {
	// PublicURL is the scheme and host used in upload links. When empty
	// the request's own scheme and host are used.
	PublicURL string
	// BasePath is where the upload and download routes are mounted.
	BasePath string
	// MaxUploadSize limits request bodies in bytes; 0 means no limit.
	MaxUploadSize int64
	CORS          CORSConfig
	// Metrics, when set, instruments every request and serves /metrics.
	Metrics *metrics.Metrics
	// HealthChecks are run by /healthz, keyed by dependency name.
	HealthChecks map[string]HealthCheck
}

// Handler provides the upload and download endpoints.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	cfg.BasePath = normalizeBasePath(cfg.BasePath)
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	return &Handler{
		config:  cfg,
		service: service,
	}
}

func normalizeBasePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// Router returns an http.Handler with every route configured.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	if h.config.Metrics != nil {
		r.Use(h.config.Metrics.Middleware)
	}

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", h.handleHealth)
	if h.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.config.Metrics.Handler())
	}

	routes := func(r chi.Router) {
		r.With(TokenAuth(h.service)).Post("/", h.handleUpload)
		r.Get("/{id}", h.handleDownload)
		r.Head("/{id}", h.handleDownload)
	}

	if h.config.BasePath == "" {
		routes(r)
	} else {
		r.Route(h.config.BasePath, routes)
	}

	return r
}

type uploadData struct {
	Link string `json:"link"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	tok, ok := TokenFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "token required")
		return
	}

	if h.config.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "expected multipart/form-data body")
		return
	}

	part, err := firstFilePart(mr)
	if err != nil {
		HandleError(w, err)
		return
	}
	defer func() { _ = part.Close() }()

	obj, err := h.service.Upload(r.Context(), tok, stashbox.Upload{
		Filename: part.FileName(),
		Content:  part,
		BaseURL:  h.baseURL(r),
	})
	if err != nil {
		if bodyErr := bodyError(err); bodyErr != nil {
			err = bodyErr
		}
		HandleError(w, err)
		return
	}

	slog.Info("object uploaded", "id", obj.ID, "user_id", obj.UserID, "size", obj.SizeBytes)
	_ = WriteJSON(w, http.StatusOK, Envelope{Status: http.StatusOK, Data: uploadData{Link: obj.URL}})
}

// firstFilePart returns the first part of the form. It must be a file.
func firstFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	part, err := mr.NextPart()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read form: no file part: %w", stashbox.ErrInvalidInput)
		}
		if err := bodyError(err); err != nil {
			return nil, fmt.Errorf("read form: %w", err)
		}
		return nil, fmt.Errorf("read form: %w: %w", stashbox.ErrInvalidInput, err)
	}

	if part.FileName() == "" {
		_ = part.Close()
		return nil, fmt.Errorf("read form: field %q is not a file: %w", part.FormName(), stashbox.ErrInvalidInput)
	}

	return part, nil
}

// bodyError classifies failures reading the request body: an exceeded
// size limit is ErrTooLarge and a truncated body is ErrInvalidInput. It
// returns nil for anything else.
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: %w", stashbox.ErrTooLarge, err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", stashbox.ErrInvalidInput, err)
	}
	return nil
}

func (h *Handler) baseURL(r *http.Request) string {
	if h.config.PublicURL != "" {
		return h.config.PublicURL + h.config.BasePath
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	return scheme + "://" + r.Host + h.config.BasePath
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "id")

	if stashbox.HasTraversal(name) {
		WriteError(w, http.StatusNotFound, "not found")
		return
	}

	// HEAD returns headers only and does not count as a view.
	if r.Method == http.MethodGet {
		defer h.service.RecordView(r.Context(), stashbox.ViewEvent{
			ObjectID:    name,
			RequestData: requestData(r),
		})
	}

	obj, blob, err := h.service.Open(r.Context(), name)
	if err != nil {
		HandleError(w, err)
		return
	}
	defer func() { _ = blob.Content.Close() }()

	w.Header().Set("ETag", `"`+obj.ETag+`"`)
	w.Header().Set("Content-Type", obj.MimeType)
	w.Header().Set("Content-Disposition", contentDisposition(obj.Filename))

	http.ServeContent(w, r, obj.Path, blob.ModTime, blob.Content)
}

func contentDisposition(filename string) string {
	if filename == "" {
		return "inline"
	}
	if v := mime.FormatMediaType("inline", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "inline"
}

// requestData captures the request context stored with a view event.
func requestData(r *http.Request) json.RawMessage {
	data, err := json.Marshal(map[string]string{
		"method":      r.Method,
		"path":        r.URL.Path,
		"remote_addr": r.RemoteAddr,
		"user_agent":  r.UserAgent(),
		"referer":     r.Referer(),
		"range":       r.Header.Get("Range"),
		"request_id":  middleware.GetReqID(r.Context()),
	})
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	for name, check := range h.config.HealthChecks {
		if err := check(r.Context()); err != nil {
			slog.Error("health check failed", "check", name, "err", err)
			WriteError(w, http.StatusServiceUnavailable, "unhealthy")
			return
		}
	}

	_ = WriteJSON(w, http.StatusOK, Envelope{Status: http.StatusOK, Message: "ok"})
}
