package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/gluufederation/shibwatcher/pkg/errors"
)

// Transfer operations.
const (
	OpCopy   = "copy"
	OpDelete = "delete"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

var (
	// Registry holds every shibwatcher collector. A dedicated registry keeps
	// the Go runtime collectors out of tests.
	Registry = prometheus.NewRegistry()

	syncPasses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shibwatcher_sync_passes_total",
		Help: "How many reconciliation passes ran, partitioned by result.",
	}, []string{"result"})

	transfers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shibwatcher_transfers_total",
		Help: "How many per-target file operations ran, partitioned by operation and result.",
	}, []string{"op", "result"})

	fleetSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shibwatcher_fleet_size",
		Help: "The number of targets seen during the most recent reconciliation.",
	})
)

func init() {
	Registry.MustRegister(syncPasses, transfers, fleetSize)
}

func result(err error) string {
	if err != nil {
		return resultFailure
	}
	return resultSuccess
}

// ObservePass records the outcome of a reconciliation pass.
func ObservePass(err error) {
	syncPasses.WithLabelValues(result(err)).Inc()
}

// ObserveTransfer records the outcome of a single per-target operation.
func ObserveTransfer(op string, err error) {
	transfers.WithLabelValues(op, result(err)).Inc()
}

// SetFleetSize records the most recently observed number of targets.
func SetFleetSize(n int) {
	fleetSize.Set(float64(n))
}

// Serve exposes the registry at /metrics on `addr` until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to shut down metrics server")
		}
	}()

	log.WithField("address", addr).Info("Serving metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WithContext(err, "serve metrics")
	}
	return nil
}
