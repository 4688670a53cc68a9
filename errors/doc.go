// Package errors provides the error taxonomy used across the ga module.
//
// # Classification
//
// Every error returned by the codec, store, pubsub and ipc packages falls in one of
// three classes:
//
//   - Invalid: unsupported backend or compression method, malformed keys or channel
//     names, clear without a bucket. Never retried, never silently substituted.
//   - Transient: connection refused, timeouts, lost connections on data operations.
//     Returned to the caller as-is; retry policy belongs to the caller.
//   - Fatal: the instance was closed and cannot be used again.
//
// Missing keys are not an error for lenient lookups; strict lookups return
// ErrKeyNotFound, which callers test with errors.Is or IsNotFound.
//
// # Wrapping
//
// Wrapping follows the pattern "component.method: action failed: %w":
//
//	return errors.WrapInvalid(err, "Store", "Set", "validate key")
//	return errors.WrapTransient(err, "NetworkedPubSub", "Publish", "publish to subject")
//
// The wrapped chain keeps the sentinel reachable through errors.Is.
package errors
