package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/samber/oops"
)

type asker interface {
	Ask(ctx context.Context, query string) QueryResult
}

type queryRequest struct {
	Query string `json:"query"`
}

type HTTPServerConfig struct {
	Addr        string
	CORSOrigins []string
	StaticDir   string
}

func NewHTTPHandler(cfg HTTPServerConfig, a asker, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// credentials are only allowed for explicitly listed origins
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: !slices.Contains(origins, "*"),
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, log)
	})

	query := func(w http.ResponseWriter, req *http.Request) {
		var body queryRequest
		err := json.NewDecoder(req.Body).Decode(&body)
		if err != nil {
			res := errorResult(oops.Code(CodeQueryInvalid).Wrapf(err, "failed to decode request"))
			writeJSON(w, http.StatusBadRequest, res, log)
			return
		}

		writeJSON(w, http.StatusOK, a.Ask(req.Context(), body.Query), log)
	}
	r.Post("/query", query)
	r.Post("/query/", query)

	if cfg.StaticDir != "" {
		index := filepath.Join(cfg.StaticDir, "index.html")
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			http.ServeFile(w, req, index)
		})
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.Error("failed to write response", slog.String("error", err.Error()))
	}
}

// ServeHTTP blocks until ctx is cancelled, then shuts the server down.
func ServeHTTP(ctx context.Context, addr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	return nil
}
