// Package server hosts the fitvoice HTTP API behind a single multiplexer.
//
// The server builds a consistent middleware chain of request IDs, logging,
// audit, metrics, rate limiting, security headers, CORS, and auth so
// handlers all share common protections and instrumentation.
package server
