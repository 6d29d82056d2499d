package k8s

import (
	"context"
	"fmt"
)

// Health endpoints of the API server.
const (
	EndpointLivez  = "/livez"
	EndpointReadyz = "/readyz"
)

// Probe queries an API server health endpoint. Clients without a REST
// transport (fakes) fall back to a version request.
func (c *Client) Probe(ctx context.Context, endpoint string) error {
	return c.once(ctx, func(ctx context.Context) error {
		rc := c.clientset.Discovery().RESTClient()
		if rc == nil {
			if _, err := c.clientset.Discovery().ServerVersion(); err != nil {
				return fmt.Errorf("%s: %w", endpoint, err)
			}
			return nil
		}
		if _, err := rc.Get().AbsPath(endpoint).DoRaw(ctx); err != nil {
			return fmt.Errorf("%s: %w", endpoint, err)
		}
		return nil
	})
}
