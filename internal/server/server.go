// Package server exposes product checks over HTTP for a thin extension popup
// that posts the active tab's URL and, optionally, its HTML.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/byteowlz/dropcheck/internal/config"
	"github.com/byteowlz/dropcheck/internal/extractor"
	"github.com/byteowlz/dropcheck/internal/render"
	"github.com/byteowlz/dropcheck/pkg/dropcheck"
)

// Checker runs one product check.
type Checker interface {
	Check(ctx context.Context, opts dropcheck.CheckOptions) (*dropcheck.CheckResult, error)
}

var _ Checker = (*dropcheck.Checker)(nil)

type Server struct {
	checker Checker
	config  config.ServerConfig
	logger  *slog.Logger
	started time.Time
}

type checkRequest struct {
	URL  string `json:"url"`
	HTML string `json:"html,omitempty"`
}

type checkResponse struct {
	RequestID string                 `json:"request_id"`
	State     string                 `json:"state"`
	Status    string                 `json:"status"`
	Cards     []render.Card          `json:"cards"`
	Product   *extractor.ProductInfo `json:"product,omitempty"`
}

func New(checker Checker, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = config.Default().Server.MaxBodyBytes
	}
	return &Server{
		checker: checker,
		config:  cfg,
		logger:  logger,
		started: time.Now(),
	}
}

// Handler returns the full middleware chain: CORS, then request IDs and
// logging, with rate limiting on the check endpoint only.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	check := http.Handler(http.HandlerFunc(s.check))
	if s.config.RateLimit > 0 {
		lmt := tollbooth.NewLimiter(s.config.RateLimit, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
		lmt.SetMessageContentType("application/json; charset=utf-8")
		lmt.SetMessage(`{"error":"rate limit exceeded"}`)
		check = tollbooth.LimitHandler(lmt, check)
	}
	r.Handle("/api/check", check).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	return c.Handler(r)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight checks.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	id := RequestID(r.Context())

	var req checkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "page too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if err := validatePageURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.HTML == "" && !s.config.FetchPages {
		writeError(w, http.StatusBadRequest, errFetchDisabled.Error())
		return
	}

	res, err := s.checker.Check(r.Context(), dropcheck.CheckOptions{URL: req.URL, HTML: req.HTML})
	if err != nil {
		s.logger.Error("check failed", "request_id", id, "url", req.URL, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := checkResponse{
		RequestID: id,
		State:     string(res.Outcome.State),
		Status:    res.Snapshot.Status,
		Cards:     res.Snapshot.Cards,
	}
	if resp.Cards == nil {
		resp.Cards = []render.Card{}
	}
	if res.Outcome.Product.Title != "" {
		product := res.Outcome.Product
		resp.Product = &product
	}

	s.logger.Info("check finished",
		"request_id", id,
		"url", req.URL,
		"state", resp.State,
		"cards", len(resp.Cards),
		"duration", res.ProcessingTime)
	writeJSON(w, http.StatusOK, resp)
}

var errFetchDisabled = errors.New("html is required: server-side page fetching is disabled (server.fetch_pages)")

func validatePageURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("url must be an absolute http(s) URL")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
