package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tablerake/tablerake/internal/storage"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for scrape requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		mux := buildMux(ctx)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

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

func buildMux(ctx context.Context) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /datasets/{dataset}/records", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("dataset")
		if _, err := datasetConfig(name); err != nil {
			http.Error(w, `{"error":"unknown dataset"}`, http.StatusNotFound)
			return
		}

		backend, err := initBackend(r.Context(), name)
		if err != nil {
			http.Error(w, `{"error":"storage init failed"}`, http.StatusInternalServerError)
			return
		}
		defer backend.Close()

		records, err := backend.Load(r.Context())
		if err != nil {
			zap.L().Error("load records failed", zap.String("dataset", name), zap.Error(err))
			http.Error(w, `{"error":"load failed"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	})

	mux.HandleFunc("GET /datasets/{dataset}/runs", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("dataset")
		if _, err := datasetConfig(name); err != nil {
			http.Error(w, `{"error":"unknown dataset"}`, http.StatusNotFound)
			return
		}

		backend, err := initBackend(r.Context(), name)
		if err != nil {
			http.Error(w, `{"error":"storage init failed"}`, http.StatusInternalServerError)
			return
		}
		defer backend.Close()

		logger, ok := backend.(storage.RunLogger)
		if !ok {
			http.Error(w, `{"error":"storage does not keep run history"}`, http.StatusNotImplemented)
			return
		}

		entries, err := logger.ListRuns(r.Context(), name, 50)
		if err != nil {
			zap.L().Error("list runs failed", zap.String("dataset", name), zap.Error(err))
			http.Error(w, `{"error":"list runs failed"}`, http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []storage.RunEntry{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	})

	mux.HandleFunc("POST /datasets/{dataset}/runs", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("dataset")
		if _, err := datasetConfig(name); err != nil {
			http.Error(w, `{"error":"unknown dataset"}`, http.StatusNotFound)
			return
		}

		// Scrapes can be slow; run them off the request cycle.
		go func() {
			result, err := runDataset(ctx, name)
			if err != nil {
				zap.L().Error("scrape run failed",
					zap.String("dataset", name),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("scrape run complete",
				zap.String("dataset", name),
				zap.Int("inserted", result.Inserted),
				zap.Int("updated", result.Updated),
				zap.Int("unchanged", result.Unchanged),
			)
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "accepted",
			"dataset": name,
		})
	})

	return mux
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
