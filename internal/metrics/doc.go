// Package metrics records compilation metrics.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so call sites never check for nil:
//
//	recorder := metrics.NewPrometheusRecorder(registry)
//	out, err := loader.Load(ctx, host, doc, loader.Options{Recorder: recorder})
//
// The CLI exports a registry either over HTTP (watch mode) or as a
// node-exporter textfile after a build.
package metrics
