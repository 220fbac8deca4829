package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
)

// DefaultPolicyStaleness is how long an analyzed policy stays fresh.
const DefaultPolicyStaleness = 30 * 24 * time.Hour

// ResourceDeps holds the collaborators shared by the built-in resources.
type ResourceDeps struct {
	Sources  map[domain.SyncType]driven.ItemSource
	Sink     driven.RecordSink
	Flights  driven.FlightDataProvider // Optional: airlines and airports are skipped without it
	Analyzer driven.PolicyAnalyzer     // Optional: policy resources are skipped without it
	Detector *ChangeDetector
	Logger   *slog.Logger

	// PolicyStaleness is the re-analysis window for policy resources (default: 30 days).
	PolicyStaleness time.Duration

	// AnalyzerLimiter spaces per-airline analysis calls.
	AnalyzerLimiter *rate.Limiter

	// PolicyChunkSize overrides the chunk size of policy resources.
	PolicyChunkSize int

	// TouchUnchanged refreshes timestamps of records whose content did not change.
	TouchUnchanged bool

	// Normalisers canonicalise produced records before change detection. Optional.
	Normalisers driven.NormaliserRegistry
}

// ResourceBinding is a resource plus its run-fatal preflight.
type ResourceBinding struct {
	Resource  Resource
	Preflight driven.Preflighter
}

// BuildResources wires the built-in sync types to their sources and item operations.
// A sync type is only built when its source and external client are available.
func BuildResources(deps ResourceDeps) []ResourceBinding {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	staleness := deps.PolicyStaleness
	if staleness <= 0 {
		staleness = DefaultPolicyStaleness
	}
	writer := NewGatedWriter(deps.Sink, deps.Detector, logger)
	writer.TouchUnchanged = deps.TouchUnchanged
	writer.Normalisers = deps.Normalisers

	var out []ResourceBinding
	source := func(t domain.SyncType) (driven.ItemSource, bool) {
		src, ok := deps.Sources[t]
		if !ok || src == nil {
			logger.Warn("no item source configured, sync type disabled", "sync_type", t)
			return nil, false
		}
		return src, true
	}

	if deps.Flights != nil {
		preflight := preflightOf(deps.Flights, "flight data provider")
		if src, ok := source(domain.SyncTypeAirlines); ok {
			out = append(out, ResourceBinding{
				Resource: Resource{
					Type:      domain.SyncTypeAirlines,
					Source:    src,
					Processor: NewGatedProcessor(airlineProducer(deps.Flights), writer),
				},
				Preflight: preflight,
			})
		}
		if src, ok := source(domain.SyncTypeAirports); ok {
			out = append(out, ResourceBinding{
				Resource: Resource{
					Type:      domain.SyncTypeAirports,
					Source:    src,
					Processor: NewGatedProcessor(airportProducer(deps.Flights), writer),
				},
				Preflight: preflight,
			})
		}
	}

	if deps.Analyzer != nil {
		preflight := preflightOf(deps.Analyzer, "policy analyzer")
		if src, ok := source(domain.SyncTypePetPolicies); ok {
			out = append(out, ResourceBinding{
				Resource: Resource{
					Type:            domain.SyncTypePetPolicies,
					Source:          src,
					Processor:       NewGatedProcessor(petPolicyProducer(deps.Analyzer), writer),
					StalenessWindow: staleness,
					ChunkSize:       deps.PolicyChunkSize,
					Limiter:         deps.AnalyzerLimiter,
				},
				Preflight: preflight,
			})
		}
		if src, ok := source(domain.SyncTypeCountryPolicies); ok {
			out = append(out, ResourceBinding{
				Resource: Resource{
					Type:            domain.SyncTypeCountryPolicies,
					Source:          src,
					Batch:           &countryPolicyBatch{analyzer: deps.Analyzer, writer: writer},
					StalenessWindow: staleness,
					ChunkSize:       deps.PolicyChunkSize,
				},
				Preflight: preflight,
			})
		}
	}
	return out
}

// RegistryConfig holds what is needed to build a controller registry.
type RegistryConfig struct {
	Bindings     []ResourceBinding
	Orchestrator *ChunkOrchestrator
	Progress     *ProgressStore
	Logger       *slog.Logger
}

// NewRegistry creates one controller per binding.
func NewRegistry(cfg RegistryConfig) (*ControllerRegistry, error) {
	registry := NewControllerRegistry()
	for _, b := range cfg.Bindings {
		c, err := NewSyncController(SyncControllerConfig{
			Resource:     b.Resource,
			Orchestrator: cfg.Orchestrator,
			Progress:     cfg.Progress,
			Preflight:    b.Preflight,
			Logger:       cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// preflightOf returns the client's own credential check, if it has one.
func preflightOf(client any, name string) driven.Preflighter {
	if p, ok := client.(driven.Preflighter); ok {
		return p
	}
	return driven.PreflightFunc(func(ctx context.Context) error {
		if client == nil {
			return fmt.Errorf("%w: %s not configured", domain.ErrMissingCredentials, name)
		}
		return nil
	})
}

func airlineProducer(flights driven.FlightDataProvider) RecordProducer {
	return func(ctx context.Context, item domain.WorkItem) (*domain.Record, error) {
		code := item.Attr("iata_code")
		if code == "" {
			return nil, domain.Permanent(fmt.Errorf("%w: airline %s has no IATA code", domain.ErrInvalidInput, item.ID))
		}
		airline, err := flights.Airline(ctx, code)
		if err != nil {
			return nil, err
		}
		airline.ID = item.ID
		rec := airline.Record()
		return &rec, nil
	}
}

func airportProducer(flights driven.FlightDataProvider) RecordProducer {
	return func(ctx context.Context, item domain.WorkItem) (*domain.Record, error) {
		code := item.Attr("iata_code")
		if code == "" {
			return nil, domain.Permanent(fmt.Errorf("%w: airport %s has no IATA code", domain.ErrInvalidInput, item.ID))
		}
		airport, err := flights.Airport(ctx, code)
		if err != nil {
			return nil, err
		}
		airport.ID = item.ID
		rec := airport.Record()
		return &rec, nil
	}
}

func petPolicyProducer(analyzer driven.PolicyAnalyzer) RecordProducer {
	return func(ctx context.Context, item domain.WorkItem) (*domain.Record, error) {
		policy, err := analyzer.AnalyzeAirline(ctx, item)
		if err != nil {
			return nil, err
		}
		policy.AirlineID = item.ID
		rec := policy.Record()
		return &rec, nil
	}
}

// countryPolicyBatch analyzes a whole chunk of countries in one request.
type countryPolicyBatch struct {
	analyzer driven.PolicyAnalyzer
	writer   *GatedWriter
}

// ProcessBatch implements driven.BatchProcessor. A failed analysis call fails
// the whole chunk; countries missing from an otherwise good answer fail alone.
func (b *countryPolicyBatch) ProcessBatch(ctx context.Context, items []domain.WorkItem) error {
	policies, err := b.analyzer.AnalyzeCountries(ctx, items)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBatchFailed, err)
	}

	failed := domain.ItemErrors{}
	for _, item := range items {
		policy, ok := policies[item.ID]
		if !ok {
			failed[item.ID] = errors.New("country missing from analysis response")
			continue
		}
		policy.CountryCode = item.ID
		if _, err := b.writer.Write(ctx, policy.Record()); err != nil {
			failed[item.ID] = err
		}
	}
	if len(failed) > 0 {
		return domain.Permanent(failed)
	}
	return nil
}
