package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadvault/chatimport-cli/internal/extract"
	"github.com/leadvault/chatimport-cli/internal/importer"
	"github.com/leadvault/chatimport-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for import requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		// One cache for all webhook runs, so duplicate lookups and org
		// settings stay warm across requests.
		c := initCache(ctx)

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

		r.Post("/webhook/import", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				OrganizationID string `json:"organization_id"`
				InputPath      string `json:"input_path"`
				DryRun         bool   `json:"dry_run"`
				Limit          int    `json:"limit"`
				UseLLM         *bool  `json:"use_llm"`
				SkipDuplicates *bool  `json:"skip_duplicates"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if body.OrganizationID == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "organization_id is required"})
				return
			}
			if body.InputPath == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "input_path is required"})
				return
			}
			useLLM := cfg.Import.UseLLM
			if body.UseLLM != nil {
				useLLM = *body.UseLLM
			}
			if err := cfg.ValidateLLMMode(useLLM); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}

			ex, err := extract.NewSpreadsheetExtractor(body.InputPath)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}

			opts := importer.Options{
				OrganizationID: body.OrganizationID,
				RunID:          uuid.NewString(),
				DryRun:         body.DryRun,
				Limit:          body.Limit,
				Concurrency:    cfg.Import.Concurrency,
				UseLLM:         body.UseLLM,
				SkipDuplicates: body.SkipDuplicates,
			}

			// Run asynchronously; callers poll GET /runs/{runID}.
			go func() {
				result, err := initImporter(st, ex, c).Run(ctx, opts)
				if err != nil {
					zap.L().Error("webhook import failed",
						zap.String("run_id", opts.RunID),
						zap.String("organization_id", body.OrganizationID),
						zap.Error(err),
					)
					return
				}
				zap.L().Info("webhook import complete",
					zap.String("run_id", result.RunID),
					zap.String("status", string(result.Status)),
					zap.Int("succeeded", result.Succeeded),
					zap.Int("failed", result.Failed),
				)
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{
				"status": "accepted",
				"run_id": opts.RunID,
			})
		})

		r.Get("/runs/{runID}", func(w http.ResponseWriter, req *http.Request) {
			run, err := st.GetRun(req.Context(), chi.URLParam(req, "runID"))
			if err != nil {
				if eris.Is(err, store.ErrRunNotFound) {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
					return
				}
				zap.L().Error("get run failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
