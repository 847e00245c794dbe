// Package cache is a small file-backed TTL cache for backend valuation
// responses.
//
// Each entry is one JSON file named after a hash of the request (method,
// path, sorted parameters and a scope). A stale entry reads as a miss and is
// deleted on that read; Prune sweeps the rest. The cache is off unless
// enabled in configuration or through FINBOARD_CACHE_ENABLED.
package cache
