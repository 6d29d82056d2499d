// Package gitops reads Argo CD application status. The reconciler is an
// optional collaborator: callers check for its namespace first and skip the
// read entirely when it is absent.
package gitops
