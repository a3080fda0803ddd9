// Package server exposes the recommendation engine over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// Middleware passed at registration time wraps only that handler, which is how the per-IP rate limit is scoped
// to /api/ routes.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Handlers
//
//   - [APIHandler] : /api/search, /api/recommend, /api/track/analyze, /api/playlist/create
//   - [SessionHandler] : /auth/login and /callback for the browser authorization-code flow
//   - [OAuthHandler] : one-shot /callback used by `echoes auth login`
//
// Errors are written as {"error", "kind", "status"?, "details"?} where kind is a [shared.ErrorKind].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
