package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	autodoc "github.com/vivaneiona/genkit-autodoc"
)

var serveAddr string

// serveCmd exposes the pipeline and the hosted documents over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generation API and hosted documents over HTTP",
	Long: `Serve the generation API over HTTP:

  POST /generate             one request, returns a result
  POST /batch                {"items": [...]}, returns a batch result
  GET  /templates            registered templates (?category=)
  GET  /templates/{id}/schema
  GET  /documents/{id}       hosted output; 404 unknown, 410 expired

Hosted URLs are built from AUTODOC_BASE_URL.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := buildEnv(ctx, envOptions{render: true, sink: true})
	if err != nil {
		return err
	}
	defer e.Close()

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           newAPI(e),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go sweep(ctx, e.sink, time.Minute)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving", "addr", serveAddr, "pool", e.pool.Size(), "base_url", cfg.BaseURL)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// sweep drops expired hosted documents until ctx ends.
func sweep(ctx context.Context, sink *autodoc.MemorySink, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := sink.Sweep(); n > 0 {
				logger.Debug("expired documents swept", "count", n)
			}
		}
	}
}

func newAPI(e *env) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", func(w http.ResponseWriter, r *http.Request) {
		var req autodoc.Request
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := e.gen.Generate(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
	mux.HandleFunc("POST /batch", func(w http.ResponseWriter, r *http.Request) {
		var req autodoc.BatchRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := e.gen.RunBatch(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
	mux.HandleFunc("GET /templates", func(w http.ResponseWriter, r *http.Request) {
		list, err := e.registry.List(r.Context(), r.URL.Query().Get("category"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	})
	mux.HandleFunc("GET /templates/{id}/schema", func(w http.ResponseWriter, r *http.Request) {
		t, err := e.registry.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t.JSONSchema())
	})
	mux.HandleFunc("GET /pool", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, e.pool.Stats())
	})
	mux.Handle("/documents/", http.StripPrefix("/documents", e.sink))
	return mux
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, 16<<20), v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: autodoc.CodeInvalidRequest, Message: err.Error()})
		return false
	}
	return true
}

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Code: autodoc.CodeOf(err), Message: err.Error()}
	var e *autodoc.Error
	if errors.As(err, &e) {
		body.Suggestion = e.Suggestion
	}
	writeJSON(w, autodoc.StatusOf(err), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
