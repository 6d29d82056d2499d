// Package poll provides the bounded polling primitive shared by every
// waiting phase: a fixed interval, a monotonic deadline and a predicate.
//
// [Until] never retries past its deadline; callers that need to tolerate
// a failing probe return (false, nil) from the condition and log the error
// themselves.
package poll
