// Package async provides fire-and-forget task dispatch with deferred error
// collection.
//
// [Dispatch] starts every task at once and returns a [Batch]. Callers decide
// for themselves when the batch matters: they can check [Batch.Pending],
// harvest the errors reported so far, or block until everything finished.
package async
