// Package crawler implements the single-domain crawl engine: path resolution,
// link extraction, domain scoping, the batched frontier traversal, and the
// Service that guards, runs, and persists one crawl per domain.
package crawler
