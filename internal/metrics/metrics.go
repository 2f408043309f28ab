package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paircode_rooms_created_total",
		Help: "Rooms created through the directory API.",
	})

	MessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paircode_messages_relayed_total",
		Help: "Sync messages fanned out by the relay hub.",
	})

	CompletionRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paircode_completion_requests_total",
		Help: "Autocomplete requests served.",
	})

	CompletionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paircode_completion_failures_total",
		Help: "Autocomplete requests that failed upstream.",
	})
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
