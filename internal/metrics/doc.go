// Package metrics provides the observability hooks used across nasstate.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never needs nil checks:
//
//	type Hub struct {
//	    recorder metrics.Recorder
//	}
//
//	hub := pubsub.New(pubsub.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// The daemon activates PrometheusRecorder when the admin HTTP server is
// enabled and serves the registry on /metrics through HTTPHandler.
package metrics
