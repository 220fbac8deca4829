package driven

import (
	"context"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

// ItemSource lists the work items of one source collection.
// Ordering must be deterministic (name, then id) so offsets are stable across invocations.
type ItemSource interface {
	// Count returns the number of items in the collection.
	Count(ctx context.Context) (int, error)

	// List returns up to limit items starting at offset.
	List(ctx context.Context, offset, limit int) ([]domain.WorkItem, error)
}

// ItemProcessor performs the opaque "process one item" operation.
type ItemProcessor interface {
	Process(ctx context.Context, item domain.WorkItem) error
}

// ItemProcessorFunc adapts a function to ItemProcessor.
type ItemProcessorFunc func(ctx context.Context, item domain.WorkItem) error

// Process calls f(ctx, item).
func (f ItemProcessorFunc) Process(ctx context.Context, item domain.WorkItem) error {
	return f(ctx, item)
}

// BatchProcessor processes a whole chunk with one external call.
// A returned error fails every item in the chunk.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, items []domain.WorkItem) error
}

// Preflighter is implemented by processors that need external credentials.
// A Preflight error aborts the invocation before any chunk work.
type Preflighter interface {
	Preflight(ctx context.Context) error
}

// PreflightFunc adapts a function to Preflighter.
type PreflightFunc func(ctx context.Context) error

// Preflight calls f(ctx).
func (f PreflightFunc) Preflight(ctx context.Context) error {
	return f(ctx)
}

// RecordSink loads and writes the semantic records produced by item operations.
type RecordSink interface {
	// Load returns the stored record for key, or domain.ErrNotFound.
	Load(ctx context.Context, kind domain.RecordKind, key string) (*domain.Record, error)

	// Write upserts the record.
	Write(ctx context.Context, record domain.Record) error

	// Touch refreshes the bookkeeping timestamp without changing content.
	Touch(ctx context.Context, kind domain.RecordKind, key string) error
}

// Normaliser canonicalises the fields of one record kind in place.
type Normaliser interface {
	// Normalise rewrites record.Fields.
	Normalise(record *domain.Record)

	// SupportedKinds returns the record kinds handled; "*" matches every kind.
	SupportedKinds() []domain.RecordKind

	// Priority orders normalisers for a kind; higher runs later.
	Priority() int
}

// NormaliserRegistry applies every matching normaliser to a record.
type NormaliserRegistry interface {
	// Register adds a normaliser.
	Register(n Normaliser)

	// GetAll returns the normalisers for kind, highest priority first.
	GetAll(kind domain.RecordKind) []Normaliser

	// Normalise applies every matching normaliser, lowest priority first.
	Normalise(record *domain.Record)

	// List returns every kind with a dedicated normaliser.
	List() []domain.RecordKind
}
