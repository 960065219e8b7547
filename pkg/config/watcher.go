package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"

	"github.com/gluufederation/shibwatcher/pkg/errors"
)

const (
	// RootDir is the directory whose configuration files are propagated to
	// the consumers. It's fixed by convention with the deployment layer.
	RootDir = "/opt/shibboleth-idp"

	// TargetLabel is the label that the deployment layer assigns to every
	// oxShibboleth container or pod.
	TargetLabel = "APP_NAME=oxshibboleth"

	// BackendDocker selects the single-host Docker engine backend.
	BackendDocker = "docker"

	// BackendKubernetes selects the Kubernetes cluster backend.
	BackendKubernetes = "kubernetes"

	// DefaultConfigPath is where the optional config file is read from when
	// ConfigPathEnv isn't set.
	DefaultConfigPath = "/etc/gluu/conf/shibwatcher.yaml"

	// InitialWatcherConfigVersion is the first version of the config file.
	// Files that don't specify a version default to this version.
	InitialWatcherConfigVersion = "v1alpha1"

	// SupportedWatcherConfigVersion is the config file version understood by
	// this binary.
	SupportedWatcherConfigVersion = "v1alpha1"

	// DefaultInterval is the poll period used when no valid interval is
	// configured.
	DefaultInterval = 10

	// DefaultExecTimeout bounds every command executed inside a pod.
	DefaultExecTimeout = 60

	defaultKubeconfig = "~/.kube/config"
)

// Environment variables recognized by shibwatcher. They take precedence over
// the config file.
const (
	ConfigPathEnv        = "GLUU_SHIBWATCHER_CONFIG"
	ContainerMetadataEnv = "GLUU_CONTAINER_METADATA"
	IntervalEnv          = "GLUU_SHIBWATCHER_INTERVAL"
	SyncEnabledEnv       = "GLUU_SYNC_SHIB_MANIFESTS"
	ExecTimeoutEnv       = "GLUU_SHIBWATCHER_EXEC_TIMEOUT"
	MetricsAddrEnv       = "GLUU_SHIBWATCHER_METRICS_ADDR"
	LogFileEnv           = "GLUU_SHIBWATCHER_LOG_FILE"
	KubeconfigEnv        = "KUBECONFIG"
)

// Watcher contains the settings for the sync process.
type Watcher struct {
	Version string `json:"version,omitempty"`

	// ContainerMetadata selects the backend. Anything other than
	// "kubernetes" selects the Docker backend.
	ContainerMetadata string `json:"containerMetadata,omitempty"`

	// Interval is the poll period in seconds.
	Interval int `json:"interval,omitempty"`

	// SyncEnabled must be true for either run mode to start.
	SyncEnabled bool `json:"syncEnabled,omitempty"`

	// ExecTimeout bounds commands executed inside pods, in seconds.
	ExecTimeout int `json:"execTimeout,omitempty"`

	// MetricsAddr is the listen address for the Prometheus endpoint. Metrics
	// aren't served if it's empty.
	MetricsAddr string `json:"metricsAddr,omitempty"`

	// LogFile optionally duplicates logs into a rotated file.
	LogFile string `json:"logFile,omitempty"`

	// Kubeconfig is the kubeconfig used when not running inside a cluster.
	Kubeconfig string `json:"kubeconfig,omitempty"`
}

func (w Watcher) getVersion() string {
	return w.Version
}

// SyncInterval returns the poll period.
func (w Watcher) SyncInterval() time.Duration {
	return time.Duration(w.Interval) * time.Second
}

// ExecTimeoutDuration returns the bound on commands executed in pods.
func (w Watcher) ExecTimeoutDuration() time.Duration {
	return time.Duration(w.ExecTimeout) * time.Second
}

// UseKubernetes returns whether the cluster backend is selected.
func (w Watcher) UseKubernetes() bool {
	return w.ContainerMetadata == BackendKubernetes
}

// Mocked for unit testing.
var (
	lookupEnv     = os.LookupEnv
	homedirExpand = homedir.Expand
)

// ParseWatcher builds the watcher configuration from the optional config
// file and the environment. A missing config file isn't an error.
func ParseWatcher() (Watcher, error) {
	path := DefaultConfigPath
	if envPath, ok := lookupEnv(ConfigPathEnv); ok && envPath != "" {
		path = envPath
	}

	cfg := Watcher{Version: InitialWatcherConfigVersion}
	if err := parseConfig(path, &cfg, SupportedWatcherConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); !ok {
			return Watcher{}, errors.WithContext(err, "parse")
		}
		log.WithField("path", path).Debug("No config file found. Using the environment only.")
	}

	applyEnv(&cfg)

	if cfg.ContainerMetadata == "" {
		cfg.ContainerMetadata = BackendDocker
	}
	if cfg.Interval < 1 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ExecTimeout < 1 {
		cfg.ExecTimeout = DefaultExecTimeout
	}

	if cfg.Kubeconfig == "" {
		cfg.Kubeconfig = defaultKubeconfig
	}
	kubeconfig, err := homedirExpand(cfg.Kubeconfig)
	if err != nil {
		return Watcher{}, errors.WithContext(err, "expand kubeconfig path")
	}
	cfg.Kubeconfig = kubeconfig
	return cfg, nil
}

func applyEnv(cfg *Watcher) {
	if val, ok := lookupEnv(ContainerMetadataEnv); ok {
		cfg.ContainerMetadata = strings.ToLower(strings.TrimSpace(val))
	}

	if val, ok := lookupEnv(IntervalEnv); ok {
		cfg.Interval = parseSeconds(IntervalEnv, val, DefaultInterval)
	}

	if val, ok := lookupEnv(ExecTimeoutEnv); ok {
		cfg.ExecTimeout = parseSeconds(ExecTimeoutEnv, val, DefaultExecTimeout)
	}

	if val, ok := lookupEnv(SyncEnabledEnv); ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			log.WithField("value", val).Warnf("Invalid %s. Sync stays disabled.", SyncEnabledEnv)
		}
		cfg.SyncEnabled = enabled
	}

	if val, ok := lookupEnv(MetricsAddrEnv); ok {
		cfg.MetricsAddr = val
	}

	if val, ok := lookupEnv(LogFileEnv); ok {
		cfg.LogFile = val
	}

	if val, ok := lookupEnv(KubeconfigEnv); ok && val != "" {
		cfg.Kubeconfig = val
	}
}

// parseSeconds falls back to `def` for non-numeric and non-positive values.
func parseSeconds(key, val string, def int) int {
	seconds, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || seconds < 1 {
		log.WithFields(log.Fields{
			"key":     key,
			"value":   val,
			"default": def,
		}).Warn("Invalid number of seconds. Using the default.")
		return def
	}
	return seconds
}
