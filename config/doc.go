// Package config loads and validates IPC configuration.
//
// Configuration is built in layers: Default, then each file given to the
// Loader (JSON or YAML, later files override earlier ones field by field),
// then GA_* environment variables. Durations in files may be numbers of
// nanoseconds or strings such as "500ms" or "2d".
//
//	cfg, err := config.Load("ipc.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Environment overrides:
//
//	GA_BACKEND            networked or local
//	GA_BUCKET             key and channel namespace
//	GA_HOST, GA_PORT      NATS server
//	GA_DB                 database index, selects JetStream bucket IPC_DB<n>
//	GA_COMPRESSION        codec method name
//	GA_COMPRESSION_LEVEL  0..9
//	GA_LOCAL_HOST, GA_LOCAL_PORT  local broker address
//	GA_PROBE_TIMEOUT      health probe bound
//
// Validate rejects unknown backends and compression methods with
// errors.ErrUnsupportedBackend and errors.ErrUnsupportedCompression, and
// anything else out of range with errors.ErrInvalidConfig.
package config
