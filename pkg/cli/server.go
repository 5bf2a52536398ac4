package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mchmarny/agape/pkg/rule"
	"github.com/mchmarny/agape/pkg/score"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	urfave "github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	serverMaxBodyBytes        = 1 << 20
)

const (
	flagPort    = "port"
	flagNoWatch = "no-watch"
)

func serverCommand() *urfave.Command {
	return &urfave.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start local HTTP API server",
		Flags: []urfave.Flag{
			&urfave.IntFlag{
				Name:  flagPort,
				Usage: "Port on which the server will listen (default: config port, 8080)",
			},
			&urfave.BoolFlag{
				Name:  flagNoWatch,
				Usage: "Do not reload the rules file when it changes",
			},
		},
		Action: cmdStartServer,
	}
}

type serverMetrics struct {
	requests    *prometheus.CounterVec
	evaluations *prometheus.CounterVec
	scores      prometheus.Histogram
	reloads     *prometheus.CounterVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	f := promauto.With(reg)
	return &serverMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agape_http_requests_total",
			Help: "HTTP requests by status code and method.",
		}, []string{"code", "method"}),
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agape_evaluations_total",
			Help: "Evaluations served by level.",
		}, []string{"level"}),
		scores: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "agape_evaluation_score",
			Help:    "Overall scores of served evaluations.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agape_rule_reloads_total",
			Help: "Rule file reloads by result.",
		}, []string{"result"}),
	}
}

// apiServer serves the HTTP API. The scorer is swapped atomically when the
// rules file changes; requests in flight keep the scorer they started with.
type apiServer struct {
	db      *sql.DB
	scorer  atomic.Pointer[score.Scorer]
	reg     *prometheus.Registry
	metrics *serverMetrics
}

func newAPIServer(db *sql.DB, s *score.Scorer) *apiServer {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := &apiServer{
		db:      db,
		reg:     reg,
		metrics: newServerMetrics(reg),
	}
	srv.scorer.Store(s)
	return srv
}

// onRulesChange installs a reloaded rule set. Rejected revisions leave the
// current scorer in place.
func (srv *apiServer) onRulesChange(rs *rule.RuleSet, err error) {
	if err == nil {
		var s *score.Scorer
		if s, err = score.New(rs); err == nil {
			srv.scorer.Store(s)
			srv.metrics.reloads.WithLabelValues("applied").Inc()
			return
		}
	}
	slog.Error("rule reload rejected", "error", err)
	srv.metrics.reloads.WithLabelValues("rejected").Inc()
}

func (srv *apiServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/evaluate", srv.evaluateHandler)
	mux.HandleFunc("GET /api/rules", srv.rulesHandler)
	mux.HandleFunc("GET /api/history", srv.historyHandler)
	mux.HandleFunc("GET /api/history/{id}", srv.historyItemHandler)
	mux.HandleFunc("GET /api/summary", srv.summaryHandler)
	mux.HandleFunc("POST /api/impact/value", valueImpactHandler)
	mux.HandleFunc("POST /api/impact/potential", humanPotentialHandler)
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(srv.reg, promhttp.HandlerOpts{}))

	return promhttp.InstrumentHandlerCounter(srv.metrics.requests, mux)
}

func cmdStartServer(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	port := int(cmd.Int(flagPort))
	if port == 0 {
		port = cfg.Port
	}
	address := fmt.Sprintf("127.0.0.1:%d", port)

	srv := newAPIServer(cfg.DB, cfg.Scorer)
	s := &http.Server{
		Addr:           address,
		Handler:        srv.handler(),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.RulesPath != "" && !cmd.Bool(flagNoWatch) {
		go func() {
			if err := rule.Watch(ctx, cfg.RulesPath, srv.onRulesChange); err != nil {
				slog.Error("rules watcher failed", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server started", "address", "http://"+address)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("error starting server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer shutdownCancel()

	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	slog.Info("server stopped")
	return nil
}
