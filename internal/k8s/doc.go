// Package k8s provides the cluster API adapter used by every phase of a
// maintenance session.
//
// [Client] bundles a typed clientset and a dynamic client. Every request is
// bounded by the configured API timeout and transient failures are retried
// through [retry.API]. Tests construct a Client from fake clientsets with
// [NewFromClients].
package k8s
