// Package store provides the bucket-scoped key/value store.
//
// A Store encodes values with a codec and keeps them in a Backend under
// "{bucket}:{key}". Two backends exist:
//
//   - NetworkedBackend over a NATS JetStream key/value bucket
//   - LocalBackend over a Manager, an in-process dictionary owned by one goroutine
//
// Stores that share a Manager (or a JetStream bucket) see each other's
// writes. Different buckets never collide; a Store without a bucket sees
// every key and refuses Clear.
//
// Basic usage:
//
//	m := store.NewManager(nil)
//	s, err := store.New(store.NewLocalBackend(m, true), store.WithBucket("jobs"))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	_ = s.Set(ctx, "a", 1)
//	n, err := store.GetOr(ctx, s, "a", 0)
package store
