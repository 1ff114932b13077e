// Package metrics provides build metrics for texbuilder.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never needs nil checks:
//
//	svc := build.NewBuildService().WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// PrometheusRecorder registers its collectors on the given registry and
// HTTPHandler exposes that registry for scraping (watch mode serves it on
// metrics.listen).
package metrics
