package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clearcare/provider-cli/internal/agent"
	"github.com/clearcare/provider-cli/internal/ingest"
	"github.com/clearcare/provider-cli/internal/model"
	"github.com/clearcare/provider-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP cleaning service",
	Long: `Serves the cleaning agent over HTTP:

  GET  /health               liveness check
  POST /api/v1/clean         clean one record (JSON body)
  POST /api/v1/upload        upload a CSV/XLSX file for batch cleaning
  GET  /api/v1/runs          list batch runs
  GET  /api/v1/runs/{runID}  run detail with per-record results`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := initAgent()
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		srvc := &server{agent: a, store: st, baseCtx: ctx}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srvc.router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

type server struct {
	agent *agent.Agent
	store store.Store
	// baseCtx outlives individual requests; async batch cleaning runs
	// on it so an upload survives its originating request.
	baseCtx context.Context
}

func (s *server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/clean", s.handleClean)
		r.Post("/upload", s.handleUpload)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
	})
	return r
}

func (s *server) handleClean(w http.ResponseWriter, r *http.Request) {
	var rec model.ProviderRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(rec) == 0 {
		writeError(w, http.StatusBadRequest, "record is empty")
		return
	}

	out := s.agent.Clean(r.Context(), rec)
	writeJSON(w, http.StatusOK, struct {
		*model.CleaningResult
		Fallback bool `json:"fallback"`
	}{out.Result, out.Fallback})
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	var records []model.ProviderRecord
	if strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		records, err = ingest.ReadXLSXReader(file)
	} else {
		records, err = ingest.ReadCSV(file)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := s.store.CreateRun(r.Context(), header.Filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create run failed")
		return
	}

	go s.runBatch(run.ID, records)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":  run.ID,
		"records": len(records),
		"status":  string(model.RunStatusQueued),
	})
}

// runBatch cleans an uploaded file in the background and records the
// outcome against the run.
func (s *server) runBatch(runID string, records []model.ProviderRecord) {
	ctx := s.baseCtx
	log := zap.L().With(zap.String("run_id", runID))

	if err := s.store.UpdateRunStatus(ctx, runID, model.RunStatusCleaning); err != nil {
		log.Error("update run status failed", zap.Error(err))
		return
	}

	start := time.Now()
	outcomes, stats, err := cleanBatch(ctx, s.agent, records, cfg.Batch.Concurrency)
	if err != nil {
		log.Error("batch cleaning failed", zap.Error(err))
		_ = s.store.UpdateRunStatus(ctx, runID, model.RunStatusFailed)
		return
	}

	persistOutcomes(ctx, s.store, runID, records, outcomes)
	stats.DurationMs = time.Since(start).Milliseconds()
	if err := s.store.UpdateRunResult(ctx, runID, stats); err != nil {
		log.Error("update run result failed", zap.Error(err))
		return
	}
	log.Info("upload batch complete",
		zap.Int("records", stats.Records),
		zap.Int("fallbacks", stats.Fallbacks),
		zap.Int64("cache_hits", s.agent.CacheStats().Hits))
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
	}
	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	results, err := s.store.ListRecordResults(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list record results failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "results": results})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
