// Package natsclient wraps the NATS Go client for the networked backend.
//
// Client owns one connection and its JetStream context. KVStore layers the
// dictionary operations the store needs over a JetStream KeyValue bucket:
// plain get/put/delete, an atomic SetDefault built on Create, and a Pop whose
// delete is guarded by the revision it read. Probe and Reachable are the
// active health checks; they never reuse the main connection.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithLogger(logger),
//	    natsclient.WithName("worker-1"),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: "IPC_DB0"})
//	if err != nil {
//	    return err
//	}
//	kv := client.NewKVStore(bucket)
//	value, existed, err := kv.SetDefault(ctx, "jobs:next", []byte("1"))
//
// # Keys
//
// NATS restricts KV keys to a small alphabet. KVStore escapes every byte
// outside [A-Za-z0-9_/-] as =XX, so callers can use any non-empty string,
// including the "bucket:key" form the store produces. Keys listed by Keys
// come back unescaped.
//
// # Errors
//
// Not-found errors wrap errors.ErrKeyNotFound. Transport failures are
// transient-class errors. SetDefault and Pop retry only when they lose a race
// against a concurrent writer; every other error is returned immediately.
//
// # Testing
//
// NewTestClient starts a NATS server in a container via testcontainers-go and
// returns a connected client. Tests that use it carry the integration build
// tag.
package natsclient
