package k8s

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/nodecycle/internal/config"
)

// Node role labels.
const (
	LabelControlPlane = "node-role.kubernetes.io/control-plane"
	LabelMaster       = "node-role.kubernetes.io/master"
	LabelEtcd         = "node-role.kubernetes.io/etcd"
)

// GetNode returns the named node.
func (c *Client) GetNode(ctx context.Context, name string) (*corev1.Node, error) {
	var node *corev1.Node
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		node, err = c.clientset.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", name, err)
	}
	return node, nil
}

// ListNodes returns every node in the cluster.
func (c *Client) ListNodes(ctx context.Context) ([]corev1.Node, error) {
	var list *corev1.NodeList
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		list, err = c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	return list.Items, nil
}

// NamespaceExists reports whether ns exists. NotFound is not an error.
func (c *Client) NamespaceExists(ctx context.Context, ns string) (bool, error) {
	err := c.call(ctx, func(ctx context.Context) error {
		_, err := c.clientset.CoreV1().Namespaces().Get(ctx, ns, metav1.GetOptions{})
		return err
	})
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get namespace %s: %w", ns, err)
	}
	return true, nil
}

// IsNodeReady reports whether the node's Ready condition is True.
func IsNodeReady(node *corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

// RoleOf derives the platform role from node labels.
func RoleOf(node *corev1.Node) config.Role {
	for _, label := range []string{LabelControlPlane, LabelMaster, LabelEtcd} {
		if _, ok := node.Labels[label]; ok {
			return config.RoleControlPlane
		}
	}
	return config.RoleWorker
}
