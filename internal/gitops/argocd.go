package gitops

import (
	"context"
	"fmt"
	"sort"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

// ApplicationGVR is the Argo CD Application resource.
var ApplicationGVR = schema.GroupVersionResource{Group: "argoproj.io", Version: "v1alpha1", Resource: "applications"}

// Status values.
const (
	SyncSynced    = "Synced"
	HealthHealthy = "Healthy"
)

// Application is the observed status of one Argo CD application.
type Application struct {
	Name   string
	Sync   string
	Health string
}

// OutOfSync reports whether the application needs attention.
func (a Application) OutOfSync() bool {
	return a.Sync != SyncSynced
}

// Summary aggregates application status.
type Summary struct {
	Total     int
	OutOfSync []Application
	Unhealthy []Application
}

// Reader lists Argo CD applications.
type Reader struct {
	client    dynamic.Interface
	namespace string
	timeout   time.Duration
}

// NewReader creates a Reader for the Argo CD namespace.
func NewReader(client dynamic.Interface, namespace string, timeout time.Duration) *Reader {
	return &Reader{client: client, namespace: namespace, timeout: timeout}
}

// Applications returns every application sorted by name.
func (r *Reader) Applications(ctx context.Context) ([]Application, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	list, err := r.client.Resource(ApplicationGVR).Namespace(r.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}

	apps := make([]Application, 0, len(list.Items))
	for _, item := range list.Items {
		sync, _, _ := unstructured.NestedString(item.Object, "status", "sync", "status")
		health, _, _ := unstructured.NestedString(item.Object, "status", "health", "status")
		apps = append(apps, Application{Name: item.GetName(), Sync: sync, Health: health})
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	return apps, nil
}

// Summarize lists applications and groups the ones that need attention.
func (r *Reader) Summarize(ctx context.Context) (*Summary, error) {
	apps, err := r.Applications(ctx)
	if err != nil {
		return nil, err
	}
	s := &Summary{Total: len(apps)}
	for _, app := range apps {
		if app.OutOfSync() {
			s.OutOfSync = append(s.OutOfSync, app)
		}
		if app.Health != HealthHealthy {
			s.Unhealthy = append(s.Unhealthy, app)
		}
	}
	return s, nil
}
