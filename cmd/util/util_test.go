package util

import (
	"bytes"
	"context"
	"errors"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gluufederation/shibwatcher/pkg/config"
	shibErrors "github.com/gluufederation/shibwatcher/pkg/errors"
	"github.com/gluufederation/shibwatcher/pkg/target"
	"github.com/gluufederation/shibwatcher/pkg/target/mocks"
)

func mockExit(t *testing.T) *int {
	code := -1
	oldExit := exit
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = oldExit })
	return &code
}

func TestHandleFatalError(t *testing.T) {
	code := mockExit(t)
	var out bytes.Buffer
	oldStderr := stderr
	stderr = &out
	defer func() { stderr = oldStderr }()

	HandleFatalError(shibErrors.WithContext(
		shibErrors.BackendUnavailable{Backend: "docker", Err: errors.New("no such socket")},
		"create backend"))
	assert.Equal(t, 1, *code)
	assert.Contains(t, out.String(), "Unable to connect to the docker backend.")
	assert.Contains(t, out.String(), "Reason: no such socket")

	out.Reset()
	HandleFatalError(errors.New("plain error"))
	assert.Equal(t, "plain error\n", out.String())
}

func TestHandlePanic(t *testing.T) {
	code := mockExit(t)
	hook := test.NewGlobal()
	defer hook.Reset()

	func() {
		defer HandlePanic()
		panic("boom")
	}()
	assert.Equal(t, 1, *code)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "boom", hook.LastEntry().Data["panic"])
}

func TestLoadConfig(t *testing.T) {
	defer func(orig func() (config.Watcher, error)) { parseWatcher = orig }(parseWatcher)

	parseWatcher = func() (config.Watcher, error) {
		return config.Watcher{SyncEnabled: false}, nil
	}
	_, err := LoadConfig()
	assert.EqualError(t, err, "Syncing Shibboleth manifests is disabled.\n"+
		"Set GLUU_SYNC_SHIB_MANIFESTS=true to enable it.")

	parseWatcher = func() (config.Watcher, error) {
		return config.Watcher{}, errors.New("bad yaml")
	}
	_, err = LoadConfig()
	assert.EqualError(t, err, "load config: bad yaml")

	parseWatcher = func() (config.Watcher, error) {
		return config.Watcher{SyncEnabled: true, Interval: 10}, nil
	}
	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, 10, cfg.Interval)
}

func TestNewBackend(t *testing.T) {
	defer func(dockerFn func(context.Context, config.Watcher) (target.Backend, error),
		kubeFn func(config.Watcher) (target.Backend, error)) {
		newDockerBackend = dockerFn
		newKubeBackend = kubeFn
	}(newDockerBackend, newKubeBackend)

	dockerBackend := &mocks.Backend{}
	kubeBackend := &mocks.Backend{}
	newDockerBackend = func(context.Context, config.Watcher) (target.Backend, error) {
		return dockerBackend, nil
	}
	newKubeBackend = func(config.Watcher) (target.Backend, error) {
		return kubeBackend, nil
	}

	tests := []struct {
		metadata string
		exp      target.Backend
	}{
		{config.BackendKubernetes, kubeBackend},
		{config.BackendDocker, dockerBackend},
		{"swarm", dockerBackend},
	}

	for _, test := range tests {
		backend, err := NewBackend(context.Background(), config.Watcher{ContainerMetadata: test.metadata})
		assert.NoError(t, err)
		assert.True(t, backend == test.exp, test.metadata)
	}
}

type closingBackend struct {
	mocks.Backend
	closed bool
}

func (b *closingBackend) Close() error {
	b.closed = true
	return nil
}

func TestCloseBackend(t *testing.T) {
	backend := &closingBackend{}
	CloseBackend(backend)
	assert.True(t, backend.closed)

	// Backends without resources are left alone.
	CloseBackend(&mocks.Backend{})
}
