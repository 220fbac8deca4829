package mocks

import (
	"context"
	"sync"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

// MockFlightDataProvider is a mock FlightDataProvider for testing.
type MockFlightDataProvider struct {
	mu       sync.Mutex
	Airlines map[string]*domain.Airline
	Airports map[string]*domain.Airport

	AirlineFn func(iata string) (*domain.Airline, error)
	AirportFn func(iata string) (*domain.Airport, error)
	PingErr   error

	// PreflightErr is returned by Preflight, e.g. domain.ErrMissingCredentials.
	PreflightErr error

	Calls int
}

// NewMockFlightDataProvider creates a new MockFlightDataProvider
func NewMockFlightDataProvider() *MockFlightDataProvider {
	return &MockFlightDataProvider{
		Airlines: make(map[string]*domain.Airline),
		Airports: make(map[string]*domain.Airport),
	}
}

func (m *MockFlightDataProvider) Airline(ctx context.Context, iataCode string) (*domain.Airline, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.AirlineFn != nil {
		return m.AirlineFn(iataCode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Airlines[iataCode]
	if !ok {
		return nil, domain.Permanent(domain.ErrNotFound)
	}
	c := *a
	return &c, nil
}

func (m *MockFlightDataProvider) Airport(ctx context.Context, iataCode string) (*domain.Airport, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.AirportFn != nil {
		return m.AirportFn(iataCode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Airports[iataCode]
	if !ok {
		return nil, domain.Permanent(domain.ErrNotFound)
	}
	c := *a
	return &c, nil
}

func (m *MockFlightDataProvider) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockFlightDataProvider) Preflight(ctx context.Context) error {
	return m.PreflightErr
}

// MockPolicyAnalyzer is a mock PolicyAnalyzer for testing.
type MockPolicyAnalyzer struct {
	mu sync.Mutex

	AnalyzeAirlineFn   func(item domain.WorkItem) (*domain.PetPolicy, error)
	AnalyzeCountriesFn func(items []domain.WorkItem) (map[string]domain.CountryPolicy, error)
	PingErr            error
	PreflightErr       error

	AirlineCalls int
	BatchCalls   int
}

func (m *MockPolicyAnalyzer) AnalyzeAirline(ctx context.Context, airline domain.WorkItem) (*domain.PetPolicy, error) {
	m.mu.Lock()
	m.AirlineCalls++
	m.mu.Unlock()
	if m.AnalyzeAirlineFn != nil {
		return m.AnalyzeAirlineFn(airline)
	}
	return &domain.PetPolicy{AirlineID: airline.ID, CabinAllowed: true}, nil
}

func (m *MockPolicyAnalyzer) AnalyzeCountries(ctx context.Context, countries []domain.WorkItem) (map[string]domain.CountryPolicy, error) {
	m.mu.Lock()
	m.BatchCalls++
	m.mu.Unlock()
	if m.AnalyzeCountriesFn != nil {
		return m.AnalyzeCountriesFn(countries)
	}
	out := make(map[string]domain.CountryPolicy, len(countries))
	for _, c := range countries {
		out[c.ID] = domain.CountryPolicy{CountryCode: c.ID, MicrochipRequired: true}
	}
	return out, nil
}

func (m *MockPolicyAnalyzer) Model() string {
	return "mock-model"
}

func (m *MockPolicyAnalyzer) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockPolicyAnalyzer) Preflight(ctx context.Context) error {
	return m.PreflightErr
}
