package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/iwvelando/land-cashflow/internal/config"
	"github.com/iwvelando/land-cashflow/internal/engine"
	"github.com/iwvelando/land-cashflow/internal/store"
	"github.com/iwvelando/land-cashflow/pkg/absorption"
	"github.com/iwvelando/land-cashflow/pkg/aggregation"
	"github.com/iwvelando/land-cashflow/pkg/constants"
	"github.com/iwvelando/land-cashflow/pkg/output"
	"github.com/iwvelando/land-cashflow/pkg/schedule"
	"github.com/iwvelando/land-cashflow/pkg/validation"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type handler struct {
	logger        *zap.Logger
	maxUploadSize int64
	version       string
	engine        *engine.Engine
	source        store.Source
}

// Options configures the handler. Source is optional; without it the
// stored-project endpoint answers 404.
type Options struct {
	MaxUploadSize  int64
	Version        string
	Source         store.Source
	AllowedOrigins []string
}

// NewHandler constructs the HTTP handler that serves the cash-flow API.
func NewHandler(logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxUploadSize := opts.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := &handler{
		logger:        logger,
		maxUploadSize: maxUploadSize,
		version:       trimmedVersion,
		engine:        engine.New(logger),
		source:        opts.Source,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/cashflow", h.handleCashFlow)
		r.Post("/cashflow/export", h.handleExport)
		r.Get("/projects/{projectID}/cashflow", h.handleProjectCashFlow)
		r.Get("/version", h.handleVersion)
	})

	return r
}

type cashFlowResponse struct {
	RunID     string             `json:"runId"`
	TimeScale string             `json:"timeScale"`
	GroupBy   string             `json:"groupBy"`
	Schedule  *schedule.Schedule `json:"schedule"`
	CSV       string             `json:"csv,omitempty"`
	Warnings  []string           `json:"warnings,omitempty"`
	Duration  string             `json:"duration"`
}

// view is the time scale and grouping a request asked for.
type view struct {
	scale aggregation.TimeScale
	group aggregation.GroupBy
}

func (h *handler) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCashFlow"
	start := time.Now()

	cfg, status, err := h.readConfiguration(w, r)
	if err != nil {
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}

	v, err := parseView(r, cfg.Output)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	s, warnings, status, err := h.runConfiguration(r.Context(), cfg, v)
	if err != nil {
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}

	h.respondSchedule(w, s, warnings, start, op)
}

func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleExport"

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = constants.OutputFormatCSV
	}
	if format == constants.OutputFormatPretty {
		h.respondErrorWithOp(w, http.StatusBadRequest, "pretty output is not available for export", op)
		return
	}
	if err := validation.ValidateOutputFormat(format); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	cfg, status, err := h.readConfiguration(w, r)
	if err != nil {
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}

	v, err := parseView(r, cfg.Output)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	s, _, status, err := h.runConfiguration(r.Context(), cfg, v)
	if err != nil {
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}

	var buf bytes.Buffer
	if err := output.Write(&buf, s, format); err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to render %s: %v", format, err), op)
		return
	}

	name := s.ProjectID
	if name == "" {
		name = s.RunID
	}
	w.Header().Set("Content-Type", output.ContentType(format))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": fmt.Sprintf("cashflow-%s.%s", name, output.Extension(format)),
	}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("failed to write export",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}

func (h *handler) handleProjectCashFlow(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleProjectCashFlow"
	start := time.Now()

	if h.source == nil {
		h.respondErrorWithOp(w, http.StatusNotFound, "no project source configured", op)
		return
	}

	v, err := parseView(r, config.OutputConfig{})
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	projectID := chi.URLParam(r, "projectID")
	in, err := h.source.LoadInputs(r.Context(), projectID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrProjectNotFound) {
			status = http.StatusNotFound
		}
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}

	s, status, err := h.run(r.Context(), *in, v)
	if err != nil {
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}

	h.respondSchedule(w, s, s.Warnings, start, op)
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// readConfiguration reads a YAML or JSON configuration from the request
// body or from the "file" part of a multipart upload. The returned status
// applies when err is not nil.
func (h *handler) readConfiguration(w http.ResponseWriter, r *http.Request) (*config.Configuration, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	data, err := h.readBody(r)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds limit of %d bytes", h.maxUploadSize)
		}
		return nil, http.StatusBadRequest, err
	}

	configMap, err := decodeYAMLToMap(data)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("error reading config data, %v", err)
	}
	if len(configMap) == 0 {
		return nil, http.StatusBadRequest, fmt.Errorf("configuration is empty")
	}

	cfg, err := config.LoadConfigurationFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	if cfg.Source.Driver != "" && cfg.Source.Driver != constants.SourceConfig {
		return nil, http.StatusBadRequest, fmt.Errorf("source driver %s cannot be used in a request", cfg.Source.Driver)
	}
	return cfg, http.StatusOK, nil
}

func (h *handler) readBody(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return data, nil
	}

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		return nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("missing configuration file")
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", "server.readBody"),
				zap.Error(closeErr),
			)
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %v", err)
	}
	return buf.Bytes(), nil
}

// runConfiguration converts cfg to engine inputs and runs them. Validation
// warnings are returned ahead of the run's own warnings.
func (h *handler) runConfiguration(ctx context.Context, cfg *config.Configuration, v view) (*schedule.Schedule, []string, int, error) {
	warnings := cfg.ValidateConfiguration()

	in, err := cfg.ToInputs()
	if err != nil {
		return nil, nil, http.StatusBadRequest, err
	}

	s, status, err := h.run(ctx, *in, v)
	if err != nil {
		return nil, nil, status, err
	}
	return s, append(warnings, s.Warnings...), http.StatusOK, nil
}

func (h *handler) run(ctx context.Context, in engine.Inputs, v view) (*schedule.Schedule, int, error) {
	s, err := h.engine.Run(ctx, in)
	if err != nil {
		return nil, statusFor(err), err
	}

	out, err := aggregation.Transform(s, v.scale, v.group)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	return out, http.StatusOK, nil
}

// statusFor maps an engine error to an HTTP status: problems with the
// submitted inputs are the client's, anything else is ours.
func statusFor(err error) int {
	var inputErr *engine.InputError
	var pricingErr *absorption.PricingError
	switch {
	case errors.As(err, &inputErr), errors.As(err, &pricingErr):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNoInputs), errors.Is(err, engine.ErrNoPeriods), errors.Is(err, absorption.ErrNoPricing):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseView reads the timeScale and groupBy query parameters, falling back
// to the configuration's output section.
func parseView(r *http.Request, defaults config.OutputConfig) (view, error) {
	query := r.URL.Query()

	scaleValue := query.Get("timeScale")
	if scaleValue == "" {
		scaleValue = defaults.TimeScale
	}
	scale, err := aggregation.ParseTimeScale(scaleValue)
	if err != nil {
		return view{}, err
	}

	groupValue := query.Get("groupBy")
	if groupValue == "" {
		groupValue = defaults.GroupBy
	}
	group, err := aggregation.ParseGroupBy(groupValue)
	if err != nil {
		return view{}, err
	}
	return view{scale: scale, group: group}, nil
}

func (h *handler) respondSchedule(w http.ResponseWriter, s *schedule.Schedule, warnings []string, start time.Time, op string) {
	csv, err := output.CsvString(s)
	if err != nil {
		h.logger.Warn("failed to render CSV",
			zap.String("op", op),
			zap.Error(err),
		)
	}

	elapsed := time.Since(start)
	response := cashFlowResponse{
		RunID:     s.RunID,
		TimeScale: s.TimeScale,
		GroupBy:   s.GroupBy,
		Schedule:  s,
		CSV:       csv,
		Warnings:  warnings,
		Duration:  elapsed.String(),
	}

	h.logger.Info("cash flow computed",
		zap.String("op", op),
		zap.String("runId", s.RunID),
		zap.Int("periods", len(s.Periods)),
		zap.Int("sections", len(s.Sections)),
		zap.Int("warnings", len(warnings)),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, response)
}

func decodeYAMLToMap(data []byte) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return make(map[string]interface{}), nil
	}

	var result map[string]interface{}
	if err := yaml.Unmarshal(trimmed, &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = make(map[string]interface{})
	}
	return result, nil
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("cash flow request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.logger.Debug("http request",
			zap.String("op", "server.loggingMiddleware"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestId", middleware.GetReqID(r.Context())),
		)
	})
}
