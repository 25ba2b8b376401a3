package domain

import "errors"

var (
	// ErrEmptyMessage signals a blank or missing chat message.
	ErrEmptyMessage = errors.New("message is required")
	// ErrNotConfigured signals missing project or corpus configuration.
	ErrNotConfigured = errors.New("server missing project or RAG corpus configuration")
	// ErrRetrievalProvider signals a retrieval service failure.
	ErrRetrievalProvider = errors.New("retrieval provider error")
	// ErrGenerationProvider signals a generation service failure.
	ErrGenerationProvider = errors.New("generation provider error")
	// ErrGenerationQuotaExceeded signals an exhausted generation token budget.
	ErrGenerationQuotaExceeded = errors.New("generation token quota exceeded")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)
