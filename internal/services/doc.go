// Package services implements clients for the external providers used by the recommendation pipeline.
//
// # Catalog
//
// [SpotifyService] implements [Catalog] over the Spotify Web API. Each request is paced by a
// [rate.Limiter] and authorized through a [RefreshRetry] policy: a 403 triggers one token refresh and
// one retry. A second 403, or a 403 whose refresh failed, is returned as-is so callers can detect scope
// restrictions (audio features are the usual case).
//
// # Credentials
//
// [CredentialManager] owns the OAuth2 session. Tokens within 60 seconds of expiry are refreshed before
// use, and concurrent refreshes collapse into one token request via singleflight. The shared request
// does not depend on any single caller's context.
//
// # Lyrics
//
// [LRCLibProvider] returns lyric text. [GeniusProvider] only returns page references, so resolving lyrics
// through it always yields "not found".
//
// # Embeddings
//
// [OpenAIEmbedder] posts to an OpenAI-compatible /embeddings endpoint.
//
// Lyrics and embedding calls run behind circuit breakers so a failing provider degrades the lyric signal
// quickly instead of stalling every candidate.
//
// # Error Handling
//
// Non-2xx responses become [shared.UpstreamError] values carrying the status and body. A 401 unwraps to
// [shared.ErrUnauthorized], everything else to [shared.ErrUpstream].
package services
