package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
)

// VolatileFields are bookkeeping keys that never participate in a signature.
var VolatileFields = []string{
	"updated_at",
	"last_updated",
	"created_at",
	"last_analyzed_at",
	"last_verified_at",
}

// ChangeDetector computes content signatures and decides whether a candidate
// record differs from what is stored.
type ChangeDetector struct {
	volatile map[string]struct{}
}

// NewChangeDetector creates a detector that ignores VolatileFields plus any extra keys.
func NewChangeDetector(extraVolatile ...string) *ChangeDetector {
	volatile := make(map[string]struct{}, len(VolatileFields)+len(extraVolatile))
	for _, k := range VolatileFields {
		volatile[k] = struct{}{}
	}
	for _, k := range extraVolatile {
		volatile[k] = struct{}{}
	}
	return &ChangeDetector{volatile: volatile}
}

// Signature returns a stable fingerprint of the record's semantic fields.
// Map key order and slice order do not affect the result.
func (d *ChangeDetector) Signature(record domain.Record) (string, error) {
	fields, err := d.normalize(record.Fields)
	if err != nil {
		return "", fmt.Errorf("normalize %s/%s: %w", record.Kind, record.Key, err)
	}
	h, err := hashstructure.Hash(fields, hashstructure.FormatV2, &hashstructure.HashOptions{
		SlicesAsSets: true,
	})
	if err != nil {
		return "", fmt.Errorf("hash %s/%s: %w", record.Kind, record.Key, err)
	}
	return strconv.FormatUint(h, 16), nil
}

// HasChanged reports whether candidate differs from existing. A nil existing
// record always counts as changed. The stored signature is preferred when set.
func (d *ChangeDetector) HasChanged(existing *domain.Record, candidate domain.Record) (bool, error) {
	if existing == nil {
		return true, nil
	}
	oldSig := existing.Signature
	if oldSig == "" {
		var err error
		if oldSig, err = d.Signature(*existing); err != nil {
			return false, err
		}
	}
	newSig, err := d.Signature(candidate)
	if err != nil {
		return false, err
	}
	return oldSig != newSig, nil
}

// normalize round-trips fields through JSON so values read back from storage
// (float64 numbers, []any slices) hash like freshly built ones, then strips
// volatile keys at every depth.
func (d *ChangeDetector) normalize(fields map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	d.strip(out)
	return out, nil
}

func (d *ChangeDetector) strip(v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if _, ok := d.volatile[k]; ok {
				delete(t, k)
				continue
			}
			d.strip(child)
		}
	case []any:
		for _, child := range t {
			d.strip(child)
		}
	}
}

// RecordProducer builds the record for one work item, typically by calling an external API.
type RecordProducer func(ctx context.Context, item domain.WorkItem) (*domain.Record, error)

// GatedWriter writes records through a RecordSink only when their content changed.
type GatedWriter struct {
	detector *ChangeDetector
	sink     driven.RecordSink
	logger   *slog.Logger

	// TouchUnchanged refreshes the stored timestamp of unchanged records.
	TouchUnchanged bool

	// Normalisers canonicalise fields before the change check. Optional.
	Normalisers driven.NormaliserRegistry
}

// NewGatedWriter creates a gated writer. A nil detector uses the defaults.
func NewGatedWriter(sink driven.RecordSink, detector *ChangeDetector, logger *slog.Logger) *GatedWriter {
	if detector == nil {
		detector = NewChangeDetector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GatedWriter{detector: detector, sink: sink, logger: logger}
}

// Write stores record unless an identical one is already stored.
// written reports whether the sink was written.
func (g *GatedWriter) Write(ctx context.Context, record domain.Record) (written bool, err error) {
	if g.Normalisers != nil {
		g.Normalisers.Normalise(&record)
	}
	existing, err := g.sink.Load(ctx, record.Kind, record.Key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("load %s/%s: %w", record.Kind, record.Key, err)
	}
	if errors.Is(err, domain.ErrNotFound) {
		existing = nil
	}

	changed, err := g.detector.HasChanged(existing, record)
	if err != nil {
		return false, err
	}
	if !changed {
		g.logger.Debug("record unchanged, skipping write", "kind", record.Kind, "key", record.Key)
		if g.TouchUnchanged {
			if err := g.sink.Touch(ctx, record.Kind, record.Key); err != nil {
				return false, fmt.Errorf("touch %s/%s: %w", record.Kind, record.Key, err)
			}
		}
		return false, nil
	}

	sig, err := g.detector.Signature(record)
	if err != nil {
		return false, err
	}
	record.Signature = sig
	if err := g.sink.Write(ctx, record); err != nil {
		return false, fmt.Errorf("write %s/%s: %w", record.Kind, record.Key, err)
	}
	return true, nil
}

// GatedProcessor is an ItemProcessor that produces a record per item and
// writes it only when its content changed.
type GatedProcessor struct {
	produce RecordProducer
	writer  *GatedWriter
}

// NewGatedProcessor combines a producer with a gated writer.
func NewGatedProcessor(produce RecordProducer, writer *GatedWriter) *GatedProcessor {
	return &GatedProcessor{produce: produce, writer: writer}
}

// Process implements driven.ItemProcessor.
func (p *GatedProcessor) Process(ctx context.Context, item domain.WorkItem) error {
	record, err := p.produce(ctx, item)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	_, err = p.writer.Write(ctx, *record)
	return err
}
