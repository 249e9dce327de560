// Package api hosts the operator HTTP server that runs alongside a crawl.
// Routes:
//   - GET /healthz and /readyz for container probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/stats for the live counters of the running crawl.
package api
