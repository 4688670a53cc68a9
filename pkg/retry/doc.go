// Package retry runs an operation with bounded exponential backoff.
//
// The store layer uses it to resolve optimistic-concurrency conflicts on the
// networked key/value backend (a set-if-absent that loses to a concurrent delete,
// a revision-guarded delete that loses to a concurrent write). Transport errors are
// not retried there: Config.Retryable restricts retries to the conflict errors.
//
//	err := retry.Do(ctx, retry.Conflict(), func() error {
//	    return kv.Update(ctx, key, value, rev)
//	})
//
// An operation can stop the loop early by returning retry.NonRetryable(err).
package retry
