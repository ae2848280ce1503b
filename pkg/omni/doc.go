// Package omni is the front-end of the omnilog pipeline.
//
// A Logger owns one dispatch channel per severity level and one channel
// for raw bytes. Back-ends are created from a registry by name, configured
// from their section of a configuration tree and bound to the channels of
// the levels they accept. Logging at a level nobody listens to costs one
// atomic load; otherwise the record is stamped, given the caller's source
// location when enabled, and handed to each bound back-end in binding
// order.
//
// Key Features:
//
//   - Level-routed dispatch with an O(1) disabled check
//   - Asynchronous file back-end with a lock-free queue and one writer goroutine
//   - Console back-end splitting levels between stdout and stderr
//   - Bridges to zap, zerolog and logrus with lumberjack rotation
//   - Back-end failures and panics reported through an ErrorHandler
//
// Basic Usage:
//
//	cfg, err := config.Load("logging.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	logger, err := omni.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := logger.Configure(cfg); err != nil {
//		log.Fatal(err)
//	}
//	defer logger.Close()
//
//	logger.Info("listening on %s", addr)
//	logger.Error("request %d failed: %v", id, err)
//
// Configuration:
//
//	{"logger": {"ident": "app", "show-location": true,
//	  "backends": [
//	    {"name": "async_file", "file": "/var/log/app.log", "levels": "info|error"},
//	    {"name": "console", "stderr-levels": "error|fatal|alert"}]}}
//
// Custom Back-ends:
//
//	reg := backends.NewDefaultRegistry()
//	r := backends.NewRegistrar(reg, "audit", func() backends.Backend { return newAudit() })
//	defer r.Close()
//	logger, err := omni.New(omni.WithRegistry(reg))
//
// Durability:
//
// The asynchronous file back-end stamps records when they are logged and
// writes them later. Records still queued when the process exits without
// Close are lost, and records from different goroutines may reach the file
// out of timestamp order. Close drains everything accepted before it.
package omni
