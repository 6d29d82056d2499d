package k8s

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
)

// ListPods lists pods in all namespaces.
func (c *Client) ListPods(ctx context.Context) ([]corev1.Pod, error) {
	return c.listPods(ctx, metav1.ListOptions{})
}

// ListPodsOnNode lists pods scheduled to node in all namespaces.
func (c *Client) ListPodsOnNode(ctx context.Context, node string) ([]corev1.Pod, error) {
	pods, err := c.listPods(ctx, metav1.ListOptions{
		FieldSelector: fields.OneTermEqualSelector("spec.nodeName", node).String(),
	})
	if err != nil {
		return nil, err
	}
	// Field selectors are advisory for some clients; filter again.
	onNode := pods[:0]
	for _, pod := range pods {
		if pod.Spec.NodeName == node {
			onNode = append(onNode, pod)
		}
	}
	return onNode, nil
}

func (c *Client) listPods(ctx context.Context, opts metav1.ListOptions) ([]corev1.Pod, error) {
	var list *corev1.PodList
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		list, err = c.clientset.CoreV1().Pods(metav1.NamespaceAll).List(ctx, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	return list.Items, nil
}

// IsPodHealthy reports whether a pod is Running or Succeeded.
func IsPodHealthy(pod *corev1.Pod) bool {
	return pod.Status.Phase == corev1.PodRunning || pod.Status.Phase == corev1.PodSucceeded
}
