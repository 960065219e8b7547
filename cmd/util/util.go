package util

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gluufederation/shibwatcher/pkg/config"
	"github.com/gluufederation/shibwatcher/pkg/docker"
	"github.com/gluufederation/shibwatcher/pkg/errors"
	"github.com/gluufederation/shibwatcher/pkg/kube"
	"github.com/gluufederation/shibwatcher/pkg/metrics"
	"github.com/gluufederation/shibwatcher/pkg/target"
)

// Mocked out for unit testing.
var (
	exit                       = os.Exit
	stderr           io.Writer = os.Stderr
	parseWatcher               = config.ParseWatcher
	newDockerBackend           = func(ctx context.Context, cfg config.Watcher) (target.Backend, error) {
		backend, err := docker.New(ctx, config.TargetLabel)
		if err != nil {
			return nil, err
		}
		return backend, nil
	}
	newKubeBackend = func(cfg config.Watcher) (target.Backend, error) {
		backend, err := kube.New(cfg.Kubeconfig, config.TargetLabel, cfg.ExecTimeoutDuration())
		if err != nil {
			return nil, err
		}
		return backend, nil
	}
)

// HandleFatalError prints the error and exits with a non-zero exit code.
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")
	fmt.Fprintln(stderr, errors.GetPrintableMessage(err))
	exit(1)
}

// HandlePanic logs any panic in the calling goroutine, and exits with a
// non-zero exit code. It must be deferred.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithFields(log.Fields{
			"panic": r,
			"stack": string(debug.Stack()),
		}).Error("Unexpected panic")
		exit(1)
	}
}

// LoadConfig parses the watcher config, and directs logs to the configured
// log file. It fails if syncing isn't enabled, since neither sync command
// should do anything in that case.
func LoadConfig() (config.Watcher, error) {
	cfg, err := parseWatcher()
	if err != nil {
		return config.Watcher{}, errors.WithContext(err, "load config")
	}

	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}))
	}

	if !cfg.SyncEnabled {
		return config.Watcher{}, errors.NewFriendlyError(
			"Syncing Shibboleth manifests is disabled.\n"+
				"Set %s=true to enable it.", config.SyncEnabledEnv)
	}
	return cfg, nil
}

// NewBackend connects to the backend selected by the config.
func NewBackend(ctx context.Context, cfg config.Watcher) (target.Backend, error) {
	var backend target.Backend
	var err error
	switch {
	case cfg.UseKubernetes():
		backend, err = newKubeBackend(cfg)
	case cfg.ContainerMetadata == config.BackendDocker:
		backend, err = newDockerBackend(ctx, cfg)
	default:
		log.WithField("containerMetadata", cfg.ContainerMetadata).
			Warn("Unknown container metadata. Falling back to Docker.")
		backend, err = newDockerBackend(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}

	log.Infof("Connected to %s", backend)
	return backend, nil
}

// CloseBackend releases the resources held by `backend`, if any.
func CloseBackend(backend target.Backend) {
	closer, ok := backend.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		log.WithError(err).Warn("Failed to close backend")
	}
}

// ServeMetrics exposes the Prometheus metrics in the background if an
// address is configured.
func ServeMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	go func() {
		if err := metrics.Serve(ctx, addr); err != nil {
			log.WithError(err).Warn("Metrics server stopped")
		}
	}()
}

// SignalContext returns a context that's cancelled when the process is
// interrupted or terminated.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
