package kube

import (
	log "github.com/sirupsen/logrus"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	// Load the client authentication plugins for managed clusters.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/gluufederation/shibwatcher/pkg/errors"
)

// Mocked out for unit testing.
var (
	inClusterConfig = rest.InClusterConfig
	kubeconfigFile  = clientcmd.BuildConfigFromFlags
)

// GetClient returns a client for the cluster the process runs in. When the
// process isn't running in a pod, it falls back to the kubeconfig at
// `kubeconfigPath`.
func GetClient(kubeconfigPath string) (kubernetes.Interface, *rest.Config, error) {
	restConfig, err := inClusterConfig()
	if err != nil {
		log.WithError(err).Warn("Unable to load in-cluster config, trying kubeconfig")

		restConfig, err = kubeconfigFile("", kubeconfigPath)
		if err != nil {
			return nil, nil, errors.WithContext(err, "load kubeconfig")
		}
	}

	kubeClient, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, nil, errors.WithContext(err, "create client")
	}
	return kubeClient, restConfig, nil
}
