package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
	"github.com/petjet/petjet-sync/internal/core/ports/driven/mocks"
)

type syncScenario struct {
	syncType  domain.SyncType
	ids       []string
	chunkSize int
	failSize  int
	gated     bool

	engine     *testEngine
	controller *SyncController
	sink       *mocks.MockRecordSink
	calls      int
	sizes      []int
	last       *domain.InvocationResponse
}

func (s *syncScenario) aSourceWithItems(syncType string, n int) error {
	s.syncType = domain.SyncType(syncType)
	if !s.syncType.Valid() {
		return fmt.Errorf("unknown sync type %q", syncType)
	}
	s.ids = itemIDs(n)
	return nil
}

func (s *syncScenario) aChunkSizeOf(n int) error {
	s.chunkSize = n
	return nil
}

func (s *syncScenario) theBatchCallFailsForChunksOf(n int) error {
	s.failSize = n
	return nil
}

func (s *syncScenario) itemsProduceIdenticalRecords() error {
	s.gated = true
	return nil
}

func (s *syncScenario) build() {
	if s.controller != nil {
		return
	}
	s.engine = newTestEngine(s.chunkSize)
	s.sink = mocks.NewMockRecordSink()
	res := Resource{Type: s.syncType, Source: mocks.NewMockItemSource(s.ids...)}

	switch {
	case s.failSize > 0:
		res.Batch = batchFunc(func(ctx context.Context, items []domain.WorkItem) error {
			s.calls += len(items)
			if len(items) == s.failSize {
				return errors.New("batch endpoint failed")
			}
			return nil
		})
	case s.gated:
		res.Processor = NewGatedProcessor(func(ctx context.Context, item domain.WorkItem) (*domain.Record, error) {
			s.calls++
			rec := domain.Airline{ID: item.ID, IATACode: item.ID, Name: item.Name}.Record()
			return &rec, nil
		}, NewGatedWriter(s.sink, nil, discardLogger()))
	default:
		res.Processor = driven.ItemProcessorFunc(func(ctx context.Context, item domain.WorkItem) error {
			s.calls++
			return nil
		})
	}
	s.controller = s.engine.controller(res)
}

func (s *syncScenario) invokeUntilDone() error {
	s.build()
	req := domain.InvocationRequest{}
	for i := 0; i < 100; i++ {
		resp, err := s.controller.Invoke(context.Background(), req)
		if err != nil {
			return err
		}
		s.last = resp
		s.sizes = append(s.sizes, resp.ChunkMetrics.Processed)
		if !resp.Progress.NeedsContinuation {
			return nil
		}
		req = domain.InvocationRequest{Offset: resp.Progress.NextOffset}
	}
	return errors.New("run did not finish")
}

func (s *syncScenario) invokeAt(offset int) error {
	s.build()
	before := s.calls
	resp, err := s.controller.Invoke(context.Background(), domain.InvocationRequest{Offset: &offset})
	if err != nil {
		return err
	}
	s.last = resp
	if offset > 0 && s.calls != before {
		return fmt.Errorf("expected no item calls, got %d", s.calls-before)
	}
	return nil
}

func (s *syncScenario) invocationsWithChunkSizes(n int, sizes string) error {
	if len(s.sizes) != n {
		return fmt.Errorf("expected %d invocations, got %d", n, len(s.sizes))
	}
	var got []string
	for _, size := range s.sizes {
		got = append(got, strconv.Itoa(size))
	}
	if strings.Join(got, ",") != sizes {
		return fmt.Errorf("expected chunk sizes %s, got %s", sizes, strings.Join(got, ","))
	}
	return nil
}

func (s *syncScenario) state() (*domain.SyncState, error) {
	return s.engine.store.Get(context.Background(), s.syncType)
}

func (s *syncScenario) processedOf(processed, total int) error {
	state, err := s.state()
	if err != nil {
		return err
	}
	if state.Processed != processed || state.Total != total {
		return fmt.Errorf("expected %d/%d, got %d/%d", processed, total, state.Processed, state.Total)
	}
	return nil
}

func (s *syncScenario) errorItemsAre(ids string) error {
	state, err := s.state()
	if err != nil {
		return err
	}
	if strings.Join(state.ErrorItems, ",") != ids {
		return fmt.Errorf("expected error items %s, got %v", ids, state.ErrorItems)
	}
	return nil
}

func (s *syncScenario) runIsComplete() error {
	state, err := s.state()
	if err != nil {
		return err
	}
	if !state.IsComplete || state.NeedsContinuation {
		return fmt.Errorf("expected complete run, got is_complete=%v needs_continuation=%v", state.IsComplete, state.NeedsContinuation)
	}
	return nil
}

func (s *syncScenario) responseNeedsNoContinuation() error {
	if s.last == nil || s.last.Progress.NeedsContinuation || s.last.Progress.NextOffset != nil {
		return errors.New("expected a terminal response")
	}
	return nil
}

func (s *syncScenario) noItemProcessedAgain() error {
	if s.calls != len(s.ids) {
		return fmt.Errorf("expected %d item calls, got %d", len(s.ids), s.calls)
	}
	return nil
}

func (s *syncScenario) sinkWrittenTimes(n int) error {
	if s.sink.Writes != n {
		return fmt.Errorf("expected %d writes, got %d", n, s.sink.Writes)
	}
	return nil
}

func initializeSyncScenario(sc *godog.ScenarioContext) {
	s := &syncScenario{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*s = syncScenario{}
		return ctx, nil
	})

	sc.Step(`^a "([^"]*)" source with (\d+) items$`, s.aSourceWithItems)
	sc.Step(`^a chunk size of (\d+)$`, s.aChunkSizeOf)
	sc.Step(`^the batch call fails for chunks of (\d+) items?$`, s.theBatchCallFailsForChunksOf)
	sc.Step(`^items produce identical records on every run$`, s.itemsProduceIdenticalRecords)
	sc.Step(`^the caller invokes until no continuation is needed$`, s.invokeUntilDone)
	sc.Step(`^the caller invokes at offset (\d+)$`, s.invokeAt)
	sc.Step(`^there were (\d+) invocations with chunk sizes "([^"]*)"$`, s.invocationsWithChunkSizes)
	sc.Step(`^the progress record has processed (\d+) of (\d+)$`, s.processedOf)
	sc.Step(`^the error items are "([^"]*)"$`, s.errorItemsAre)
	sc.Step(`^the run is complete$`, s.runIsComplete)
	sc.Step(`^the response needs no continuation$`, s.responseNeedsNoContinuation)
	sc.Step(`^no item was processed again$`, s.noItemProcessedAgain)
	sc.Step(`^the record sink was written (\d+) times$`, s.sinkWrittenTimes)
}

func TestChunkedSyncFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "chunked-sync",
		ScenarioInitializer: initializeSyncScenario,
		Options: &godog.Options{
			Format:   "progress",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("chunked sync scenarios failed")
	}
}
