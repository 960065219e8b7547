package kube

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"

	"github.com/gluufederation/shibwatcher/pkg/archive"
	"github.com/gluufederation/shibwatcher/pkg/errors"
	"github.com/gluufederation/shibwatcher/pkg/target"
)

// defaultTimeout bounds each exec when no timeout is configured.
const defaultTimeout = time.Minute

// Backend lists pods and copies files into them over the exec API.
type Backend struct {
	client  kubernetes.Interface
	label   string
	timeout time.Duration
	exec    execFunc
}

// New connects to the cluster. It fails with errors.BackendUnavailable if
// neither the in-cluster config nor the kubeconfig at `kubeconfigPath` can be
// loaded.
func New(kubeconfigPath, label string, timeout time.Duration) (*Backend, error) {
	kubeClient, restConfig, err := GetClient(kubeconfigPath)
	if err != nil {
		return nil, errors.BackendUnavailable{Backend: "kubernetes", Err: err}
	}
	return newBackend(kubeClient, restConfig, label, timeout), nil
}

func newBackend(kubeClient kubernetes.Interface, restConfig *rest.Config, label string,
	timeout time.Duration) *Backend {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Backend{
		client:  kubeClient,
		label:   label,
		timeout: timeout,
		exec:    podExec(kubeClient, restConfig),
	}
}

// ListTargets returns the running pods in any namespace that carry the
// target label. Pods that aren't running yet can't be exec'd into, so they
// join the fleet once they start.
func (b *Backend) ListTargets(ctx context.Context) ([]target.Target, error) {
	pods, err := b.client.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{
		LabelSelector: b.label,
	})
	if err != nil {
		return nil, errors.WithContext(err, "list pods")
	}

	var targets []target.Target
	for _, pod := range pods.Items {
		if pod.Status.Phase != corev1.PodRunning {
			log.WithField("pod", pod.Namespace+"/"+pod.Name).
				WithField("phase", pod.Status.Phase).
				Debug("Skipping pod that isn't running")
			continue
		}

		var container string
		if len(pod.Spec.Containers) > 0 {
			container = pod.Spec.Containers[0].Name
		}
		targets = append(targets, target.Target{
			Name:      pod.Name,
			Namespace: pod.Namespace,
			Container: container,
			Address:   pod.Status.PodIP,
		})
	}
	return targets, nil
}

// CopyFile copies `path` into the pod at the same location. Since the exec
// API has no upload call, the file is streamed as an archive into a remote
// tar process.
func (b *Backend) CopyFile(ctx context.Context, t target.Target, path string) error {
	if err := b.run(ctx, t, []string{"mkdir", "-p", filepath.Dir(path)}); err != nil {
		return errors.WithContext(err, "make parent directory")
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	session := openUploadSession(ctx, b.exec, t, []string{"tar", "xvf", "-", "-C", "/"})

	archiveBytes, err := archive.FileBytes(path)
	if err != nil {
		_ = session.Abort(err)
		return errors.WithContext(err, "build archive")
	}

	if _, err := session.Write(archiveBytes); err != nil {
		// The write fails when the remote command exited early, in which
		// case its exit status is the more useful error.
		if remoteErr := session.Abort(err); remoteErr != nil {
			return errors.WithContext(remoteErr, "extract archive")
		}
		return errors.WithContext(err, "stream archive")
	}

	if err := session.Flush(); err != nil {
		_ = session.Abort(err)
		return errors.WithContext(err, "flush archive")
	}

	if err := session.Wait(); err != nil {
		return errors.WithContext(err, "extract archive")
	}

	log.WithFields(log.Fields{
		"target": t.String(),
		"output": strings.TrimSpace(session.stdout.String()),
	}).Debug("Extracted archive")
	return nil
}

// DeleteFile removes `path` from the pod. Removing a path that doesn't exist
// succeeds.
func (b *Backend) DeleteFile(ctx context.Context, t target.Target, path string) error {
	return b.run(ctx, t, []string{"rm", "-f", path})
}

// run executes `cmd` without stdin and waits for it to exit.
func (b *Backend) run(ctx context.Context, t target.Target, cmd []string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var stdout, stderr lockedBuffer
	err := b.exec(ctx, t, cmd, remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	})

	log.WithFields(log.Fields{
		"target":  t.String(),
		"command": strings.Join(cmd, " "),
		"stdout":  stdout.String(),
	}).Debug("Executed command")
	return remoteError(err, cmd, stderr.String())
}

// remoteError converts the error returned by an exec into a
// RemoteCommandError if the remote command ran and exited non-zero.
func remoteError(err error, cmd []string, stderr string) error {
	if err == nil {
		return nil
	}

	var exitErr utilexec.ExitError
	if errors.As(err, &exitErr) {
		return errors.RemoteCommandError{
			Command:  cmd,
			ExitCode: exitErr.ExitStatus(),
			Stderr:   stderr,
		}
	}

	if stderr != "" {
		return errors.New("%w (stderr: %s)", err, strings.TrimSpace(stderr))
	}
	return err
}

func (b *Backend) String() string {
	return fmt.Sprintf("kubernetes (%s)", b.label)
}
