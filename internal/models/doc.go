// Package models defines domain entities and persistence interfaces for the echoes recommendation service.
//
// The package contains two categories of types:
//
// 1. Value types shared across the pipeline
//   - [Track] : catalog metadata mapped from provider responses
//   - [AudioFeatures] and [AudioFeatureVector] : raw and normalized perceptual descriptors
//   - [EmbeddingVector] : lyric-meaning embeddings
//   - [WeightSet], [Breakdown], [ScoredCandidate] : scoring inputs and outputs
//   - [Recommendation] and [Analysis] : the ranked result and how it was produced
//   - [Credential] : the OAuth2 session for a user
//
// 2. Persistent entities
//   - [RecommendationLog] : served recommendations, stored by repositories.RecommendationLogRepository
//
// Persistent entities implement [Model]; [Repository] defines CRUD access for them.
package models
