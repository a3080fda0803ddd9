// Package tasks implements the recommendation pipeline with real-time progress reporting.
//
// # Core Operations
//
// [Engine] exposes four operations:
//
//  1. [Engine.Recommend] : Rank tracks similar to a seed track
//     - Resolves the seed's lyric embedding and audio features
//     - Acquires a candidate pool through the [Strategy] ladder
//     - Scores every candidate concurrently and sorts by combined score
//     - Returns at least 30 results when that many candidates exist
//
//  2. [Engine.Analyze] : Candidate pool and method tag, unscored
//
//  3. [Engine.Search] : Free-text catalog search with duplicate recordings removed
//
//  4. [Engine.BatchRecommend] : Recommend for many seeds with a worker pool
//     - Writes one export per seed plus a manifest
//
// [Publisher.Publish] turns a selection into a private playlist.
//
// # Signals
//
// Each candidate's score is the weighted sum of cosine similarities:
//
//	score = lyrics*w.Lyrics + spotify*w.Spotify + audio*w.Audio
//
// The audio-embedding slot has no source and always contributes 0. A signal that cannot be resolved for
// the seed has its effective weight set to 0 and is listed in [models.Analysis.Degradations]. Weights
// are not renormalized afterwards.
//
// # Candidate Ladder
//
// [DefaultStrategies] tries, in order:
//
//	feature_conditioned -> seed_track_artist -> seed_track_only
//
// The feature-conditioned rung is skipped when the seed's audio features were forbidden (403). A 404 on
// the track+artist seed falls back to the track seed alone. Any other failure ends the ladder with a
// [CandidateFetchError].
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates. Updates use select with default so a
// slow consumer never stalls the pipeline.
package tasks
