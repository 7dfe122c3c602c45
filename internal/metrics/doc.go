// Package metrics provides the metrics hooks used by the event bridge, the
// module build proxies and the build host.
//
// Components receive a Recorder through their options and default to
// NoopRecorder, so no call site needs a nil check:
//
//	recorder := metrics.NewPrometheusRecorder(registry)
//	b := bridge.New(bridge.Options{Recorder: recorder}, ...)
//
// PrometheusRecorder registers its collectors on the registry it is given;
// HTTPHandler exposes that registry for scraping.
package metrics
