// Package server exposes the attendance processor over HTTP.
//
// Routes:
//
//	GET  /                    liveness
//	POST /process-attendance  multipart upload (field "image") → attendance.Report
//	GET  /stats               profiler snapshot
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/nvr-ai/go-register/attendance"
	"github.com/nvr-ai/go-register/common"
	"github.com/nvr-ai/go-register/config"
	"github.com/nvr-ai/go-register/profiler"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// UploadField is the multipart form field holding the register image.
const UploadField = "image"

// ReportProcessor builds a report from an uploaded image.
type ReportProcessor interface {
	Process(ctx context.Context, filename string, data []byte) (*attendance.Report, error)
}

// Server is the HTTP transport of the attendance pipeline.
type Server struct {
	cfg       config.ServerConfig
	processor ReportProcessor
	profiler  *profiler.RuntimeProfiler
	log       *logrus.Entry
}

// New creates a new server.
//
// Arguments:
//   - cfg: Listen address, CORS origins, limits and timeouts.
//   - processor: Builds the reports. When nil, uploads are answered with 503.
//   - rp: Source of /stats. May be nil.
//   - log: Request logger.
//
// Returns:
//   - *Server: The server. Call ListenAndServe or mount Handler.
func New(cfg config.ServerConfig, processor ReportProcessor, rp *profiler.RuntimeProfiler, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		cfg:       cfg,
		processor: processor,
		profiler:  rp,
		log:       log.WithField("component", "server"),
	}
}

// Handler returns the routed handler with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /process-attendance", s.handleProcess)
	mux.HandleFunc("GET /stats", s.handleStats)
	return s.logRequests(s.cors(mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.cfg.Addr).Info("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http shutdown")
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server")
	}
	return nil
}

type rootResponse struct {
	Status          string `json:"status"`
	ComponentsReady bool   `json:"components_ready"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{Status: "AI Pipeline is running", ComponentsReady: s.processor != nil})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.profiler.GetCurrentStats())
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if s.processor == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("attendance pipeline is not ready"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, errors.Errorf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, errors.Wrapf(err, "reading multipart field %q", UploadField))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "reading upload"))
		return
	}

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	report, err := s.processor.Process(ctx, header.Filename, data)
	if err != nil {
		writeError(w, StatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// StatusFor maps a processing error to its HTTP status code.
func StatusFor(err error) int {
	var (
		invalid    *common.InvalidImageError
		noGrid     *common.NoGridFoundError
		degenerate *common.DegenerateGridError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &noGrid), errors.As(err, &degenerate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, attendance.NewErrorReport(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// cors allows the configured browser origins, answering preflight requests directly.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (slices.Contains(s.cfg.AllowedOrigins, origin) || slices.Contains(s.cfg.AllowedOrigins, "*")) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				if headers := r.Header.Get("Access-Control-Request-Headers"); headers != "" {
					h.Set("Access-Control-Allow-Headers", headers)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Error("request failed")
			return
		}
		entry.Debug("request")
	})
}
