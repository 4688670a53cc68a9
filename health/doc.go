// Package health describes the health of the store and pubsub halves of an
// IPC instance.
//
// The package supports three states: healthy, degraded and unhealthy. A
// Status can carry sub-statuses; Aggregate folds them into one result where
// any unhealthy child makes the parent unhealthy and any degraded child makes
// it degraded.
//
//	store := health.FromProbe("store", storeErr, storeLatency)
//	pubsub := health.FromProbe("pubsub", probeErr, probeLatency)
//	overall := health.Aggregate("ipc", []health.Status{store, pubsub})
//
// Error messages passed through FromProbe are sanitized: URLs, file paths,
// IP addresses, ports and credential-looking pairs are replaced by
// placeholders.
package health
