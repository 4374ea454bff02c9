package app

import (
	"strings"
	"time"
)

const (
	// RateStoreMemory keeps rate limit counters in process.
	RateStoreMemory = "memory"
	// RateStoreDatabase shares rate limit counters through the SQL database.
	RateStoreDatabase = "database"

	defaultRateLimitRequests = 100
	defaultRateLimitWindow   = time.Minute
)

// RateLimitOrDefault returns the per-client request budget, falling back to 100 requests per minute.
func (c ServerConfig) RateLimitOrDefault() (int, time.Duration) {
	requests := c.RateLimit.Requests
	if requests <= 0 {
		requests = defaultRateLimitRequests
	}
	window := c.RateLimit.Window
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return requests, window
}

// RateStore returns the configured counter backend, defaulting to memory.
func (c ServerConfig) RateStore() string {
	if strings.EqualFold(strings.TrimSpace(c.RateLimit.Store), RateStoreDatabase) {
		return RateStoreDatabase
	}
	return RateStoreMemory
}

// AllowedOrigins trims the configured CORS origins and drops blanks.
func (c ServerConfig) AllowedOrigins() []string {
	origins := make([]string, 0, len(c.CORS.AllowedOrigins))
	for _, origin := range c.CORS.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// MetricsEndpoint returns the path serving Prometheus metrics.
func (c MonitoringConfig) MetricsEndpoint() string {
	endpoint := strings.TrimSpace(c.Prometheus.Endpoint)
	if endpoint == "" {
		return "/metrics"
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return endpoint
}
