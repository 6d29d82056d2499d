package k8s

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/imamik/nodecycle/internal/util/retry"
)

// K3sKubeconfig is where k3s writes the admin kubeconfig on server nodes.
const K3sKubeconfig = "/etc/rancher/k3s/k3s.yaml"

const defaultAPITimeout = 15 * time.Second

// Client wraps Kubernetes API operations for a maintenance session.
type Client struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface

	apiTimeout time.Duration
	retryOpts  []retry.Option
}

// Option customizes a Client.
type Option func(*Client)

// WithAPITimeout bounds every single API request.
func WithAPITimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.apiTimeout = d
		}
	}
}

// WithRetry sets the retry policy for transient API failures.
func WithRetry(opts ...retry.Option) Option {
	return func(c *Client) {
		c.retryOpts = opts
	}
}

// NewClient creates a Client from a kubeconfig file. An empty path uses the
// standard loading rules and falls back to the k3s admin kubeconfig.
func NewClient(kubeconfigPath string, opts ...Option) (*Client, error) {
	config, err := restConfig(kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	return NewFromClients(clientset, dynamicClient, opts...), nil
}

// NewFromClients creates a Client from pre-configured clients.
// This is useful for testing with fake clients.
func NewFromClients(clientset kubernetes.Interface, dynamicClient dynamic.Interface, opts ...Option) *Client {
	c := &Client{
		clientset:  clientset,
		dynamic:    dynamicClient,
		apiTimeout: defaultAPITimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func restConfig(path string) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	switch {
	case path != "":
		rules.ExplicitPath = path
	case os.Getenv(clientcmd.RecommendedConfigPathEnvVar) == "":
		if _, err := os.Stat(clientcmd.RecommendedHomeFile); errors.Is(err, fs.ErrNotExist) {
			if _, err := os.Stat(K3sKubeconfig); err == nil {
				rules.ExplicitPath = K3sKubeconfig
			}
		}
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
}

// Clientset exposes the typed client.
func (c *Client) Clientset() kubernetes.Interface {
	return c.clientset
}

// Dynamic exposes the dynamic client.
func (c *Client) Dynamic() dynamic.Interface {
	return c.dynamic
}

// APITimeout returns the per-request bound.
func (c *Client) APITimeout() time.Duration {
	return c.apiTimeout
}

// RetryOptions returns the retry policy applied to API calls.
func (c *Client) RetryOptions() []retry.Option {
	return c.retryOpts
}

// call runs fn with a bounded context, retrying transient failures.
func (c *Client) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.API(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.apiTimeout)
		defer cancel()
		return fn(callCtx)
	}, c.retryOpts...)
}

// once runs fn a single time with a bounded context.
func (c *Client) once(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, c.apiTimeout)
	defer cancel()
	return fn(callCtx)
}
