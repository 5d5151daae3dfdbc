// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes, and graceful shutdown for the grove
// service.
//
// # Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithComponent("evaluator").
//		WithUser(userID).
//		WithResource("project", projectID).
//		Info("permission denied")
//
// # Metrics
//
//	metrics := observability.NewMetrics(nil)
//	metrics.ObservePermissionCheck("project", allowed, elapsed)
//	mux.Handle("/metrics", metrics.Handler())
//
// # Health
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	mux.HandleFunc("/health/live", checker.Liveness)
//	mux.HandleFunc("/health/ready", checker.Readiness)
package observability
