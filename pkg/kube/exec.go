package kube

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/gluufederation/shibwatcher/pkg/errors"
	"github.com/gluufederation/shibwatcher/pkg/target"
)

// execFunc runs `cmd` in the target's container with the given streams. It
// blocks until the remote command exits, or ctx is cancelled.
type execFunc func(ctx context.Context, t target.Target, cmd []string, streams remotecommand.StreamOptions) error

// podExec returns an execFunc that runs commands through the pod exec
// subresource. Only the streams that are set are attached.
func podExec(kubeClient kubernetes.Interface, restConfig *rest.Config) execFunc {
	return func(ctx context.Context, t target.Target, cmd []string, streams remotecommand.StreamOptions) error {
		execOpts := corev1.PodExecOptions{
			Container: t.Container,
			Command:   cmd,
			Stdin:     streams.Stdin != nil,
			Stdout:    streams.Stdout != nil,
			Stderr:    streams.Stderr != nil,
		}
		req := kubeClient.CoreV1().RESTClient().Post().
			Resource("pods").
			SubResource("exec").
			Name(t.Name).
			Namespace(t.Namespace).
			VersionedParams(&execOpts, scheme.ParameterCodec)
		exec, err := remotecommand.NewSPDYExecutor(restConfig, "POST", req.URL())
		if err != nil {
			return errors.WithContext(err, "setup remote shell")
		}

		if err := exec.StreamWithContext(ctx, streams); err != nil {
			return errors.WithContext(err, "stream")
		}
		return nil
	}
}
