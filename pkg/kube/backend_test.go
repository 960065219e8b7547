package kube

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"

	shibErrors "github.com/gluufederation/shibwatcher/pkg/errors"
	"github.com/gluufederation/shibwatcher/pkg/target"
)

const label = "APP_NAME=oxshibboleth"

var shibPod = target.Target{Name: "oxshibboleth-0", Namespace: "gluu", Container: "oxshibboleth"}

type execRecord struct {
	target target.Target
	cmd    []string
	stdin  []byte
}

// fakeExec records each exec, and simulates the remote command.
type fakeExec struct {
	calls []execRecord

	// results maps a command name to the error returned for it.
	results map[string]error
	stderr  map[string]string

	// rejectStdin makes the remote command exit without reading stdin.
	rejectStdin bool
}

func (f *fakeExec) exec(_ context.Context, t target.Target, cmd []string,
	streams remotecommand.StreamOptions) error {

	record := execRecord{target: t, cmd: cmd}
	var stdinErr error
	if streams.Stdin != nil && !f.rejectStdin {
		record.stdin, stdinErr = io.ReadAll(streams.Stdin)
	}
	f.calls = append(f.calls, record)
	if stdinErr != nil {
		return stdinErr
	}

	if streams.Stdout != nil {
		_, _ = streams.Stdout.Write([]byte(cmd[0] + " output\n"))
	}
	if stderr, ok := f.stderr[cmd[0]]; ok && streams.Stderr != nil {
		_, _ = streams.Stderr.Write([]byte(stderr))
	}
	return f.results[cmd[0]]
}

func newTestBackend(f *fakeExec, objects ...runtime.Object) *Backend {
	client := fake.NewSimpleClientset(objects...)
	backend := newBackend(client, nil, label, time.Second)
	backend.exec = f.exec
	return backend
}

func pod(namespace, name string, phase corev1.PodPhase, labels map[string]string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    labels,
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{Name: "oxshibboleth"}, {Name: "sidecar"}},
		},
		Status: corev1.PodStatus{
			Phase: phase,
			PodIP: "10.0.0.1",
		},
	}
}

func TestListTargets(t *testing.T) {
	shibLabels := map[string]string{"APP_NAME": "oxshibboleth"}
	backend := newTestBackend(&fakeExec{},
		pod("gluu", "oxshibboleth-0", corev1.PodRunning, shibLabels),
		pod("other", "oxshibboleth-1", corev1.PodRunning, shibLabels),
		pod("gluu", "oxshibboleth-2", corev1.PodPending, shibLabels),
		pod("gluu", "oxauth-0", corev1.PodRunning, map[string]string{"APP_NAME": "oxauth"}),
	)

	targets, err := backend.ListTargets(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []target.Target{
		{Name: "oxshibboleth-0", Namespace: "gluu", Container: "oxshibboleth", Address: "10.0.0.1"},
		{Name: "oxshibboleth-1", Namespace: "other", Container: "oxshibboleth", Address: "10.0.0.1"},
	}, targets)
}

func TestListTargetsEmpty(t *testing.T) {
	targets, err := newTestBackend(&fakeExec{}).ListTargets(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, targets)
}

func TestCopyFile(t *testing.T) {
	path := writeTestFile(t, "conf/idp.xml", "<idp/>")

	f := &fakeExec{}
	backend := newTestBackend(f)
	require.NoError(t, backend.CopyFile(context.Background(), shibPod, path))

	require.Len(t, f.calls, 2)
	assert.Equal(t, []string{"mkdir", "-p", filepath.Dir(path)}, f.calls[0].cmd)
	assert.Nil(t, f.calls[0].stdin)
	assert.Equal(t, shibPod, f.calls[0].target)

	assert.Equal(t, []string{"tar", "xvf", "-", "-C", "/"}, f.calls[1].cmd)
	tr := tar.NewReader(bytes.NewReader(f.calls[1].stdin))
	header, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, strings.TrimPrefix(path, "/"), header.Name)
	contents, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, "<idp/>", string(contents))
}

func TestCopyFileMkdirFails(t *testing.T) {
	path := writeTestFile(t, "conf/idp.xml", "<idp/>")

	f := &fakeExec{
		results: map[string]error{"mkdir": utilexec.CodeExitError{Err: errors.New("exit"), Code: 1}},
		stderr:  map[string]string{"mkdir": "read-only file system"},
	}
	err := newTestBackend(f).CopyFile(context.Background(), shibPod, path)
	assert.Equal(t, shibErrors.RemoteCommandError{
		Command:  []string{"mkdir", "-p", filepath.Dir(path)},
		ExitCode: 1,
		Stderr:   "read-only file system",
	}, shibErrors.RootCause(err))

	// The upload isn't attempted.
	assert.Len(t, f.calls, 1)
}

func TestCopyFileTarFails(t *testing.T) {
	path := writeTestFile(t, "conf/idp.xml", "<idp/>")

	f := &fakeExec{
		results:     map[string]error{"tar": utilexec.CodeExitError{Err: errors.New("exit"), Code: 2}},
		stderr:      map[string]string{"tar": "tar: write error"},
		rejectStdin: true,
	}
	err := newTestBackend(f).CopyFile(context.Background(), shibPod, path)
	assert.Equal(t, shibErrors.RemoteCommandError{
		Command:  []string{"tar", "xvf", "-", "-C", "/"},
		ExitCode: 2,
		Stderr:   "tar: write error",
	}, shibErrors.RootCause(err))
}

func TestCopyFileMissingSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "gone.xml")

	f := &fakeExec{}
	err := newTestBackend(f).CopyFile(context.Background(), shibPod, path)
	assert.Equal(t, shibErrors.FileNotFound{Path: path}, shibErrors.RootCause(err))

	// The aborted session sends no archive.
	require.Len(t, f.calls, 2)
	assert.Empty(t, f.calls[1].stdin)
}

func TestDeleteFile(t *testing.T) {
	f := &fakeExec{}
	path := "/opt/shibboleth-idp/metadata/sp.xml"
	require.NoError(t, newTestBackend(f).DeleteFile(context.Background(), shibPod, path))
	require.Len(t, f.calls, 1)
	assert.Equal(t, []string{"rm", "-f", path}, f.calls[0].cmd)
}

func TestExecTimeout(t *testing.T) {
	backend := newTestBackend(&fakeExec{})
	backend.timeout = 10 * time.Millisecond
	backend.exec = func(ctx context.Context, _ target.Target, _ []string, _ remotecommand.StreamOptions) error {
		<-ctx.Done()
		return ctx.Err()
	}

	err := backend.DeleteFile(context.Background(), shibPod, "/opt/shibboleth-idp/conf/idp.xml")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExecTimeoutOutputStillStreaming(t *testing.T) {
	stop := make(chan struct{})
	stopped := make(chan struct{})
	defer func() {
		close(stop)
		<-stopped
	}()

	backend := newTestBackend(&fakeExec{})
	backend.timeout = 10 * time.Millisecond
	backend.exec = func(ctx context.Context, _ target.Target, _ []string, streams remotecommand.StreamOptions) error {
		// The stream copies outlive the exec once the context expires.
		go func() {
			defer close(stopped)
			for {
				select {
				case <-stop:
					return
				default:
					_, _ = streams.Stdout.Write([]byte("out"))
					_, _ = streams.Stderr.Write([]byte("err"))
				}
			}
		}()
		<-ctx.Done()
		return ctx.Err()
	}

	err := backend.DeleteFile(context.Background(), shibPod, "/opt/shibboleth-idp/conf/idp.xml")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRemoteError(t *testing.T) {
	assert.NoError(t, remoteError(nil, []string{"ls"}, ""))

	connErr := errors.New("connection refused")
	assert.Equal(t, connErr, remoteError(connErr, []string{"ls"}, ""))
	assert.EqualError(t, remoteError(connErr, []string{"ls"}, "boom\n"),
		"connection refused (stderr: boom)")
}

// writeTestFile creates a file under a temporary directory, and returns its
// absolute path.
func writeTestFile(t *testing.T, name, contents string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}
