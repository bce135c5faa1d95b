package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"arb-stalker/internal/infra/log"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	ScanPasses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stalker_scan_passes_total",
		Help: "Scan passes by result (ok, failed, skipped)",
	}, []string{"result"})

	ScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stalker_scan_duration_seconds",
		Help:    "Duration of completed scan passes",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	LastScannedBlock = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stalker_last_scanned_block",
		Help: "Chain height used by the last completed scan pass",
	})

	TrackedTargets = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stalker_tracked_targets",
		Help: "Targets seen by the last scan pass",
	})

	NotificationsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stalker_notifications_sent_total",
		Help: "Transaction notifications delivered",
	})

	NotificationsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stalker_notifications_failed_total",
		Help: "Transaction notifications that could not be delivered",
	})

	ExplorerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stalker_explorer_errors_total",
		Help: "Explorer failures by operation (block_number, history)",
	}, []string{"operation"})

	Commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stalker_commands_total",
		Help: "Chat commands handled, by command and result",
	}, []string{"command", "result"})
)

func init() {
	prometheus.MustRegister(
		ScanPasses,
		ScanDuration,
		LastScannedBlock,
		TrackedTargets,
		NotificationsSent,
		NotificationsFailed,
		ExplorerErrors,
		Commands,
	)
}

// ReadyFunc reports whether the service can do useful work (store reachable etc).
type ReadyFunc func(ctx context.Context) error

// NewRouter exposes /metrics and /healthz.
func NewRouter(ready ReadyFunc) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}

// Serve blocks until ctx is done, then shuts the server down.
func Serve(ctx context.Context, addr string, ready ReadyFunc) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(ready),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.LogInfo("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
