// Package api hosts the HTTP server, middleware, and handlers for the crawl
// service. Routes:
//   - POST /scrape/{url} crawls the domain of a percent-encoded root URL.
//   - GET /count/{url} and /list/{url} report what a crawl stored.
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
package api
