package k8s

import (
	"context"
	"fmt"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
)

// NodeWarnings returns Warning events about node newer than since, most
// recent first. They are used for diagnostics only.
func (c *Client) NodeWarnings(ctx context.Context, node string, since time.Time) ([]corev1.Event, error) {
	selector := fields.Set{
		"involvedObject.kind": "Node",
		"involvedObject.name": node,
		"type":                corev1.EventTypeWarning,
	}.AsSelector().String()

	var list *corev1.EventList
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		list, err = c.clientset.CoreV1().Events(metav1.NamespaceAll).List(ctx, metav1.ListOptions{FieldSelector: selector})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events for node %s: %w", node, err)
	}

	var events []corev1.Event
	for _, ev := range list.Items {
		if ev.InvolvedObject.Kind != "Node" || ev.InvolvedObject.Name != node || ev.Type != corev1.EventTypeWarning {
			continue
		}
		if eventTime(ev).Before(since) {
			continue
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		return eventTime(events[i]).After(eventTime(events[j]))
	})
	return events, nil
}

func eventTime(ev corev1.Event) time.Time {
	switch {
	case !ev.LastTimestamp.IsZero():
		return ev.LastTimestamp.Time
	case !ev.EventTime.IsZero():
		return ev.EventTime.Time
	default:
		return ev.CreationTimestamp.Time
	}
}
