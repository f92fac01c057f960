// Package server exposes the research MCP server and read-only session
// routes over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/polzovatel/web-research-mcp/internal/fault"
	"github.com/polzovatel/web-research-mcp/internal/session"
)

const shutdownTimeout = 10 * time.Second

// Reader is the read side of the research session.
type Reader interface {
	Summary() session.Summary
	ScreenshotByIndex(index int) ([]byte, error)
}

type Server struct {
	addr   string
	router chi.Router
	logger zerolog.Logger
}

func New(addr string, srv *mcp.Server, r Reader, logger zerolog.Logger) *Server {
	s := &Server{addr: addr, logger: logger}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(s.logRequests)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
	router.Handle("/mcp", mcpHandler)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Route("/research", func(rt chi.Router) {
		rt.Get("/summary", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, r.Summary())
		})
		rt.Get("/screenshots/{index}", s.screenshot(r))
	})

	s.router = router
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("http server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) screenshot(r Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(req, "index"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "index must be an integer"})
			return
		}
		data, err := r.ScreenshotByIndex(index)
		if errors.Is(err, fault.ErrResourceNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			s.logger.Error().Err(err).Int("index", index).Msg("read screenshot")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "read screenshot failed"})
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
