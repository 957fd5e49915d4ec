// Package client provides a wrapper around the Kubernetes client-go library.
//
// The verification harness talks to the declarative store (the cluster API)
// through this wrapper: a typed clientset for built-in resources and token
// minting, and a dynamic client for the MaaS custom resources.
package client

import (
	"os"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps a Kubernetes clientset and dynamic client.
type Client struct {
	clientset     kubernetes.Interface
	dynamicClient dynamic.Interface
	restConfig    *rest.Config
}

// Config contains configuration options for creating a Kubernetes client.
type Config struct {
	// Kubeconfig path for out-of-cluster configuration.
	// If empty, falls back to $KUBECONFIG, then in-cluster configuration.
	Kubeconfig string
}

// New creates a new Kubernetes client with the provided configuration.
//
// The harness normally runs out-of-cluster against the operator's kubeconfig;
// in-cluster configuration is supported for runs deployed as a Job.
func New(cfg Config) (*Client, error) {
	kubeconfig := cfg.Kubeconfig
	if kubeconfig == "" {
		kubeconfig = os.Getenv("KUBECONFIG")
	}

	var restConfig *rest.Config
	var err error
	if kubeconfig != "" {
		restConfig, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, &ClientError{Operation: "build kubeconfig", Err: err}
		}
	} else {
		restConfig, err = rest.InClusterConfig()
		if err != nil {
			return nil, &ClientError{Operation: "get in-cluster config", Err: err}
		}
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, &ClientError{Operation: "create clientset", Err: err}
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, &ClientError{Operation: "create dynamic client", Err: err}
	}

	return &Client{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		restConfig:    restConfig,
	}, nil
}

// NewFromClientset creates a Client from existing interfaces.
// This is useful for testing with fake clients.
func NewFromClientset(clientset kubernetes.Interface, dynamicClient dynamic.Interface) *Client {
	return &Client{
		clientset:     clientset,
		dynamicClient: dynamicClient,
	}
}

// Clientset returns the underlying Kubernetes clientset.
func (c *Client) Clientset() kubernetes.Interface {
	return c.clientset
}

// DynamicClient returns the underlying dynamic client.
func (c *Client) DynamicClient() dynamic.Interface {
	return c.dynamicClient
}

// RestConfig returns the underlying REST configuration.
func (c *Client) RestConfig() *rest.Config {
	return c.restConfig
}
