// Package prometheus exposes session manager metrics through
// github.com/prometheus/client_golang.
//
// [NewCollector] wraps a [goSession.Manager] in a prometheus.Collector that
// reads [goSession.Manager.MetricsSnapshot] on every scrape. Counter names are
// prefixed algolearn_session_ and end in _total; the sign-in latency histogram
// is algolearn_session_sign_in_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers register the
//     Collector or mount [Collector.Handler].
//   - Mutate manager state.
package prometheus
