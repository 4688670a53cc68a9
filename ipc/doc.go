// Package ipc is the single entry point combining a key/value store and a
// publish/subscribe channel over one backend.
//
// The backend is chosen once, from config.Config:
//
//   - "networked": NATS. Keys live in the JetStream bucket IPC_DB<db>,
//     channels are core subjects.
//   - "local": an in-process Manager for keys and a WebSocket broker for
//     channels, started by Init when none answers on the configured port.
//
// Keys and channels are prefixed with "{bucket}:", so instances with
// different buckets never see each other's data.
//
//	cfg := config.Default()
//	cfg.Backend = config.BackendLocal
//	cfg.Bucket = "jobs"
//
//	i, err := ipc.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer i.Close(ctx)
//
//	if err := i.Init(ctx); err != nil {
//		return err
//	}
//	_ = i.Set(ctx, "counter", 42)
//	n, _ := store.GetOr(ctx, i.Store(), "counter", 0)
//
// Close is the caller's obligation: it joins the Manager goroutine, stops
// an owned broker and closes the NATS connection.
package ipc
