package store

import (
	"context"
	"strings"
)

// NewStore creates a postgres-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL string, embeddingDim int) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(embeddingDim), nil
	}
	return NewPostgresStore(ctx, databaseURL, embeddingDim)
}
