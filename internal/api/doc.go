// Package api provides the HTTP gateway to the social feed service.
//
// # Overview
//
// The gateway is stateless: every call is a single request/response and the
// client keeps no memory of earlier results. Callers own all client-side state
// (see the state and optimistic packages).
//
// The package is split into three files:
//
//   - client.go: Gateway interfaces and the HTTP Client implementation
//   - types.go: Data structures mirroring the API schema
//   - errors.go: The typed *Error returned for non-2xx responses
//
// # Interfaces
//
// Gateway is split into PostGateway (feed, profile lists, mutations) and
// AuthGateway (login, registration, identity). Most components depend on only
// one half, which keeps test fakes small.
//
// # Request Handling
//
// All requests:
//   - Use context for cancellation and timeout control
//   - Set Accept: application/json, User-Agent: murmur/0.1 and a fresh X-Request-ID
//   - Attach Authorization: Bearer <token> when the TokenSource yields one
//   - Wait on a client-side rate limiter when Options.RequestsPerSecond > 0
//
// The TokenSource is consulted on every call, so logging in or out takes effect
// for the next request without rebuilding the client.
//
// # Error Handling
//
// A 4xx/5xx response becomes *Error carrying the status and the server's
// {"error": "..."} message (or a generic message when the body has none).
// StatusOf, IsUnauthorized, IsNotFound and Message inspect wrapped errors.
// Transport failures are wrapped with fmt.Errorf and are not *Error values.
// There are no retries; the caller decides what a failure means.
//
// # Viewer-relative fields
//
// Post.IsLiked is computed by the server relative to the viewer_id query
// parameter. Anonymous requests omit the parameter and receive is_liked=false.
package api
