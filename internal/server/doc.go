// Package server exposes the running idler over a small local HTTP API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first).
//
// The [BasicRouter] implementation registers method-qualified patterns on an [http.ServeMux].
//
// # Endpoints
//
//	GET  /status   current scheduler snapshot as JSON
//	POST /command  {"line": "refetch"} runs one control line, same grammar as the console
//
// Handlers implement [Handler], which pairs [http.Handler] with the routes it serves.
//
// The server only listens when a port is configured and is meant for localhost.
package server
