// Package ga is a small inter-process communication toolkit: a bucket-scoped
// key/value store and a publish/subscribe channel behind one facade, with a
// pluggable value codec and two interchangeable backends.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│              ipc.IPC                │  Facade, batch ops,
//	│   (Set/Get/Pop, Publish/Listen)     │  health, lifecycle
//	└─────────────────────────────────────┘
//	       ↓ keys                ↓ channels
//	┌─────────────────┐   ┌─────────────────┐
//	│   store.Store   │   │  pubsub.PubSub  │  "{bucket}:" prefixing,
//	│   codec.Codec   │   │   codec.Codec   │  encode/decode
//	└─────────────────┘   └─────────────────┘
//	       ↓                     ↓
//	┌─────────────────────────────────────┐
//	│ networked: NATS JetStream KV + core │
//	│ local:     store.Manager + broker   │
//	└─────────────────────────────────────┘
//
// # Packages
//
//   - codec: serialization plus optional compression (gzip, zlib, zstd, lz4, ...)
//   - store: Store, Backend implementations and the local Manager
//   - pubsub: PubSub implementations and the callback dispatcher
//   - pubsub/broker: the WebSocket broker behind the local backend
//   - ipc: the facade selected from config.Config
//   - config: file, environment and default configuration layers
//   - natsclient: NATS connection lifecycle and JetStream KV helpers
//   - errors: classified errors (transient, invalid, fatal)
//   - metric, health: Prometheus metrics and component health
//   - pkg/retry: exponential backoff used by the NATS key/value paths
//
// # Backends
//
// The networked backend needs a NATS server with JetStream enabled. Keys live
// in the bucket IPC_DB<db>; channels are plain subjects. Several processes on
// different hosts share state through it.
//
// The local backend keeps keys in a Manager goroutine inside the process and
// routes channels through a broker listening on a loopback port. The first
// instance to call Init starts the broker; later ones find it with a probe and
// connect to it. The broker can also run standalone via cmd/ga-broker.
//
// # Buckets
//
// Every key and channel is stored as "{bucket}:{name}". Instances with
// different buckets share a backend without seeing each other's data. An
// instance without a bucket sees every key and refuses Clear.
package ga
