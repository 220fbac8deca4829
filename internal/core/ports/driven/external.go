package driven

import (
	"context"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

// FlightDataProvider looks up reference data from a flight-search API.
type FlightDataProvider interface {
	// Airline returns reference data for an IATA carrier code.
	Airline(ctx context.Context, iataCode string) (*domain.Airline, error)

	// Airport returns reference data for an IATA airport code.
	Airport(ctx context.Context, iataCode string) (*domain.Airport, error)

	// Ping verifies credentials and connectivity.
	Ping(ctx context.Context) error
}

// PolicyAnalyzer produces pet-travel policy documents using a language model.
type PolicyAnalyzer interface {
	// AnalyzeAirline returns the pet policy for one airline.
	AnalyzeAirline(ctx context.Context, airline domain.WorkItem) (*domain.PetPolicy, error)

	// AnalyzeCountries returns import policies for several countries in one request.
	// The result is keyed by country code.
	AnalyzeCountries(ctx context.Context, countries []domain.WorkItem) (map[string]domain.CountryPolicy, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the analyzer is configured and reachable
	Ping(ctx context.Context) error
}
