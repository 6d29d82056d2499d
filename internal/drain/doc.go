// Package drain implements the Cordon/Drain Controller.
//
// The controller cordons the target node and records a durable cordon marker
// before anything else happens, so that a rollback always knows whether the
// node has to be made schedulable again. Draining deletes evictable pods with
// the configured grace period and escalates to zero-grace deletes for pods
// still present once the grace period has elapsed.
//
// Pod enumeration and cordoning use k8s.io/kubectl/pkg/drain, the same code
// kubectl drain runs.
package drain
