// Package metrics exposes the Prometheus scrape endpoint. Domain counters
// live next to the code that increments them; this package only serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the /metrics endpoint for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
