package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

// scriptedInvoker replays canned responses and records requests.
type scriptedInvoker struct {
	responses []*domain.InvocationResponse
	err       error
	requests  []domain.InvocationRequest
}

func (s *scriptedInvoker) Invoke(ctx context.Context, syncType domain.SyncType, req domain.InvocationRequest) (*domain.InvocationResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func TestDriver_RunsToCompletion(t *testing.T) {
	e := newTestEngine(3)
	c, _, _ := newAirlinesController(e, itemIDs(10)...)
	r := NewControllerRegistry()
	require.NoError(t, r.Register(c))
	svc := NewSyncService(SyncServiceConfig{Registry: r, Progress: e.progress, Logger: discardLogger()})

	d := NewDriver(DriverConfig{Invoker: svc, Logger: discardLogger()})
	summary, err := d.Run(context.Background(), domain.SyncTypeAirlines, domain.InvocationRequest{})

	require.NoError(t, err)
	assert.Equal(t, 4, summary.Invocations)
	assert.Equal(t, 10, summary.Processed)
	assert.Equal(t, 10, summary.Succeeded)
	assert.Zero(t, summary.Failed)
}

func TestDriver_FollowsNextOffset(t *testing.T) {
	inv := &scriptedInvoker{responses: []*domain.InvocationResponse{
		{Success: true, Progress: domain.Continuation{NeedsContinuation: true, NextOffset: intPtr(5), ResumeToken: "tok"}},
		{Success: true, Errors: []domain.ItemError{{ID: "x", Error: "boom"}}},
	}}
	d := NewDriver(DriverConfig{Invoker: inv, Logger: discardLogger()})

	summary, err := d.Run(context.Background(), domain.SyncTypeAirports, domain.InvocationRequest{ForceUpdate: true})
	require.NoError(t, err)

	require.Len(t, inv.requests, 2)
	assert.Equal(t, 5, *inv.requests[1].Offset)
	assert.Equal(t, "tok", inv.requests[1].ResumeToken)
	assert.True(t, inv.requests[1].ForceUpdate)
	assert.Equal(t, 1, summary.Failed)
}

func TestDriver_ContinuationContract(t *testing.T) {
	inv := &scriptedInvoker{responses: []*domain.InvocationResponse{
		{Success: true, Progress: domain.Continuation{NeedsContinuation: true}},
	}}
	d := NewDriver(DriverConfig{Invoker: inv, Logger: discardLogger()})

	_, err := d.Run(context.Background(), domain.SyncTypeAirports, domain.InvocationRequest{})
	assert.ErrorIs(t, err, domain.ErrContinuationContract)
}

func TestDriver_InvocationError(t *testing.T) {
	inv := &scriptedInvoker{err: domain.ErrMissingCredentials}
	d := NewDriver(DriverConfig{Invoker: inv, Logger: discardLogger()})

	summary, err := d.Run(context.Background(), domain.SyncTypePetPolicies, domain.InvocationRequest{})
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
	assert.Equal(t, 1, summary.Invocations)
}

func TestDriver_FailedResponse(t *testing.T) {
	inv := &scriptedInvoker{responses: []*domain.InvocationResponse{{Success: false, Error: "fetch failed"}}}
	d := NewDriver(DriverConfig{Invoker: inv, Logger: discardLogger()})

	_, err := d.Run(context.Background(), domain.SyncTypePetPolicies, domain.InvocationRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch failed")
}

func TestDriver_MaxInvocations(t *testing.T) {
	loop := &domain.InvocationResponse{Success: true, Progress: domain.Continuation{NeedsContinuation: true, NextOffset: intPtr(1)}}
	inv := &scriptedInvoker{responses: []*domain.InvocationResponse{loop, loop, loop}}
	d := NewDriver(DriverConfig{Invoker: inv, MaxInvocations: 2, Logger: discardLogger()})

	summary, err := d.Run(context.Background(), domain.SyncTypePetPolicies, domain.InvocationRequest{})
	require.Error(t, err)
	assert.Equal(t, 2, summary.Invocations)
}

func TestDriver_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDriver(DriverConfig{Invoker: &scriptedInvoker{}, Logger: discardLogger()})

	_, err := d.Run(ctx, domain.SyncTypePetPolicies, domain.InvocationRequest{})
	assert.True(t, errors.Is(err, context.Canceled))
}
