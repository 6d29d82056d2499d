package k8s

import (
	"context"
	"time"

	"github.com/imamik/nodecycle/internal/util/poll"
)

// WaitForNodeReady waits for the node's Ready condition. Lookup errors are
// tolerated while the node is still booting.
func (c *Client) WaitForNodeReady(ctx context.Context, name string, interval, timeout time.Duration) error {
	return poll.Until(ctx, interval, timeout, func(ctx context.Context) (bool, error) {
		node, err := c.GetNode(ctx, name)
		if err != nil {
			return false, nil
		}
		return IsNodeReady(node), nil
	})
}
