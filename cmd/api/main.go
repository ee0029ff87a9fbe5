// Package main implements the Wessley diagnosis API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/wessley-diagnose/engine/diagnose"
	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/engine/stack"
	"github.com/WessleyAI/wessley-diagnose/pkg/config"
	"github.com/WessleyAI/wessley-diagnose/pkg/metrics"
	"github.com/WessleyAI/wessley-diagnose/pkg/mid"
	"github.com/WessleyAI/wessley-diagnose/pkg/resilience"
	"github.com/WessleyAI/wessley-diagnose/pkg/vehiclenlp"
)

// StatusClientClosed is the non-standard status for a request the client
// abandoned before the diagnosis finished.
const StatusClientClosed = 499

func main() {
	configPath := flag.String("config", envOr("WESSLEY_CONFIG", "wessley.yaml"), "path to YAML config")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := stack.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	s.Metrics.CollectRuntime()

	// --- NATS transports ---
	if s.NATS != nil {
		sub, err := diagnose.Serve(s.NATS, s.Engine, diagnose.ServeOpts{
			Queue:   cfg.NATS.Queue,
			Workers: cfg.NATS.Workers,
			Log:     logger,
		})
		if err != nil {
			return err
		}
		defer sub.Unsubscribe()
		isub, err := s.Ingester.StartConsumer(s.NATS, cfg.NATS.Queue+"-ingest")
		if err != nil {
			return fmt.Errorf("ingest consumer: %w", err)
		}
		defer isub.Unsubscribe()
	}

	if cfg.Server.MetricsAddr != "" {
		go func() {
			if err := s.Metrics.Serve(ctx, cfg.Server.MetricsAddr, logger); err != nil {
				logger.Error("metrics server", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newHandler(s.Engine, s.Metrics, s.Breaker, cfg.Server, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// Diagnoser is the engine as seen by the handlers.
type Diagnoser interface {
	Run(ctx context.Context, q domain.DiagnosticQuery) (*diagnose.Result, error)
}

func newHandler(eng Diagnoser, reg *metrics.Registry, breaker *resilience.Breaker, cfg config.Server, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth(breaker))
	mux.HandleFunc("GET /api/makes", handleMakes)
	mux.HandleFunc("POST /api/diagnose", handleDiagnose(eng, logger))
	mux.Handle("GET /metrics", reg.Handler())

	mws := []mid.Middleware{
		mid.Recover(logger),
		mid.RequestID(),
		mid.OTel("wessley-api"),
		mid.Logger(logger),
		mid.Metrics(reg),
		mid.CORS(cfg.CORSOrigin),
	}
	if cfg.RateLimit > 0 {
		mws = append(mws, mid.RateLimit(resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.RateLimit, Burst: cfg.RateBurst})))
	}
	return mid.Chain(mux, mws...)
}

// --- Handlers ---

func handleHealth(breaker *resilience.Breaker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status := map[string]string{"status": "ok"}
		if breaker != nil {
			status["generator"] = breaker.State().String()
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func handleMakes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"makes": vehiclenlp.Makes()})
}

// DiagnoseResponse is the JSON response for POST /api/diagnose.
type DiagnoseResponse struct {
	Report     domain.DiagnosticReport `json:"report"`
	Provenance diagnose.Provenance     `json:"provenance"`
	RequestID  string                  `json:"request_id,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func handleDiagnose(eng Diagnoser, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q domain.DiagnosticQuery
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&q); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}

		res, err := eng.Run(r.Context(), q)
		if err != nil {
			var ve *domain.ValidationError
			switch {
			case errors.As(err, &ve) && errors.Is(err, domain.ErrInvalidQuery):
				writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Wrapped.Error(), Field: ve.Field})
			case errors.Is(err, domain.ErrInvalidQuery):
				writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			case errors.Is(err, domain.ErrCancelled):
				writeJSON(w, StatusClientClosed, errorBody{Error: "request cancelled"})
			default:
				logger.Error("diagnose failed", "err", err, "request_id", mid.GetRequestID(r.Context()))
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
			}
			return
		}

		writeJSON(w, http.StatusOK, DiagnoseResponse{
			Report:     res.Report,
			Provenance: res.Provenance,
			RequestID:  mid.GetRequestID(r.Context()),
		})
	}
}

// writeJSON encodes v before committing the status so an unencodable body
// becomes a 500 instead of a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode response", "err", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorBody{Error: "internal server error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
