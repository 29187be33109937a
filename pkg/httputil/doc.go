// Package httputil provides shared HTTP handler plumbing: JSON response
// helpers with a uniform error envelope, request body and path parameter
// parsing on top of gorilla/mux, and the middleware every server in this
// repository mounts (request IDs, structured request logging, panic
// recovery, body size limits).
//
// All error responses share the same shape:
//
//	{"error": "human readable message"}
//
// Validation failures may additionally carry a "fields" object mapping
// field names to messages. Handlers should never write error bodies by
// hand; use the Write* helpers so clients can rely on the envelope.
package httputil
