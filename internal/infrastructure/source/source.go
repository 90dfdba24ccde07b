// Package source provides the trade-feed adapters. Each source decodes
// normalized trade events from its transport and hands them to the
// router; the clustering core is transport-agnostic.
package source

import (
	"context"

	"main/internal/domain/entity/tape"
)

// Handler consumes one decoded trade event.
type Handler func(*tape.Trade)

// Source pumps trades into its handler until the context is cancelled
// or the stream ends.
type Source interface {
	Run(ctx context.Context) error
}
