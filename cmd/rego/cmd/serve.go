package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	rego "github.com/centraunit/goallin_resources"
)

var (
	serveAddr string
	logFile   string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve registry metrics and a managed request log over HTTP",
	Long: `Runs an HTTP server backed by a managed append-mode file handle.
/metrics exposes the registry as Prometheus metrics, /resources returns a
JSON snapshot, and POST /log?line=... appends to the managed log file.
Every handle is released exactly once on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8090", "listen address")
	serveCmd.Flags().StringVar(&logFile, "log-file", "requests.log", "managed request log file, relative to workdir")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	registry := rego.NewRegistry(rego.WithLogger(logger))
	group := rego.NewGroup()
	defer group.ReleaseAll()

	reqLog, err := rego.OpenFile(registry, filepath.Join(getWorkdir(), logFile), rego.ModeAppend)
	reqLog, err = rego.Track(group, reqLog, err)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(registry)

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	router.HandleFunc("/resources", func(w http.ResponseWriter, r *http.Request) {
		snapshot := struct {
			Live      map[string]int `json:"live"`
			Resources []rego.Info    `json:"resources"`
		}{
			Live:      registry.Snapshot(),
			Resources: []rego.Info{reqLog.Describe()},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshot)
	}).Methods(http.MethodGet)
	router.HandleFunc("/log", func(w http.ResponseWriter, r *http.Request) {
		line := r.URL.Query().Get("line")
		if line == "" {
			http.Error(w, "missing line parameter", http.StatusBadRequest)
			return
		}
		if err := reqLog.WriteLine(line); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPost)

	srv := &http.Server{
		Addr:    serveAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", serveAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}

	return group.ReleaseAll()
}
