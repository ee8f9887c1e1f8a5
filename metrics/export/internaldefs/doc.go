// Package internaldefs holds the metric names and bucket boundaries shared by
// the session exporters.
//
// Both the Prometheus and OTel exporters read these tables so that a counter
// has the same name whichever backend scrapes it. Changing a definition here
// changes every exporter at once.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
