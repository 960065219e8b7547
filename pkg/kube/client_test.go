package kube

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/rest"
)

func TestGetClient(t *testing.T) {
	defer func(inCluster func() (*rest.Config, error),
		fromFile func(string, string) (*rest.Config, error)) {
		inClusterConfig = inCluster
		kubeconfigFile = fromFile
	}(inClusterConfig, kubeconfigFile)

	clusterConfig := &rest.Config{Host: "https://10.96.0.1:443"}
	fileConfig := &rest.Config{Host: "https://kube.example.com"}
	notInCluster := errors.New("unable to load in-cluster configuration")

	tests := []struct {
		name          string
		inClusterErr  error
		kubeconfigErr error
		expHost       string
		expKubeconfig bool
		expErr        string
	}{
		{
			name:    "InCluster",
			expHost: clusterConfig.Host,
		},
		{
			name:          "KubeconfigFallback",
			inClusterErr:  notInCluster,
			expHost:       fileConfig.Host,
			expKubeconfig: true,
		},
		{
			name:          "NeitherAvailable",
			inClusterErr:  notInCluster,
			kubeconfigErr: errors.New("no such file"),
			expKubeconfig: true,
			expErr:        "load kubeconfig: no such file",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			var kubeconfigPath string
			inClusterConfig = func() (*rest.Config, error) {
				if test.inClusterErr != nil {
					return nil, test.inClusterErr
				}
				return clusterConfig, nil
			}
			kubeconfigFile = func(_, path string) (*rest.Config, error) {
				kubeconfigPath = path
				if test.kubeconfigErr != nil {
					return nil, test.kubeconfigErr
				}
				return fileConfig, nil
			}

			client, restConfig, err := GetClient("/root/.kube/config")
			if test.expErr != "" {
				assert.EqualError(t, err, test.expErr)
				assert.Nil(t, client)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, client)
				assert.Equal(t, test.expHost, restConfig.Host)
			}

			if test.expKubeconfig {
				assert.Equal(t, "/root/.kube/config", kubeconfigPath)
			} else {
				assert.Empty(t, kubeconfigPath)
			}
		})
	}
}
