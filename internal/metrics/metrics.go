// Package metrics provides observability for the catalog service
package metrics

import (
	"net/http"
	"time"
)

// Outcome labels
const (
	OutcomeOK        = "ok"
	OutcomeExpired   = "expired"
	OutcomeMalformed = "malformed"
	OutcomeOther     = "other"
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
)

// Metrics provides observability for the catalog service
type Metrics interface {
	// Authentication metrics
	RecordTokenDecode(outcome string)
	RecordLogin(outcome string)
	RecordRegistration(outcome string)

	// HTTP metrics
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
	IncActiveRequests()
	DecActiveRequests()

	// Rate limiting
	RecordRateLimitRejection(keyClass string)

	// Catalog read cache
	RecordCacheHit()
	RecordCacheMiss()

	// HTTP handler for Prometheus scraping
	HTTPHandler() http.Handler
}

// NoOpMetrics provides a no-op implementation for testing/disabled monitoring
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new no-op metrics instance
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

func (n *NoOpMetrics) RecordTokenDecode(outcome string)  {}
func (n *NoOpMetrics) RecordLogin(outcome string)        {}
func (n *NoOpMetrics) RecordRegistration(outcome string) {}

func (n *NoOpMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {}
func (n *NoOpMetrics) IncActiveRequests()                                                         {}
func (n *NoOpMetrics) DecActiveRequests()                                                         {}

func (n *NoOpMetrics) RecordRateLimitRejection(keyClass string) {}

func (n *NoOpMetrics) RecordCacheHit()  {}
func (n *NoOpMetrics) RecordCacheMiss() {}

// HTTPHandler returns a handler that reports metrics are disabled
func (n *NoOpMetrics) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("metrics disabled\n"))
	})
}
