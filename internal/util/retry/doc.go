// Package retry provides exponential backoff retry logic for transient
// Kubernetes API failures.
//
// [WithExponentialBackoff] retries an operation with configurable max attempts,
// initial delay and maximum delay. [API] wraps it with a classifier that stops
// retrying on errors the API server will keep returning, such as NotFound or
// Forbidden.
package retry
