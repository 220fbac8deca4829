package domain

import "time"

// WorkItem is one candidate item read from a source collection.
type WorkItem struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	LastUpdated *time.Time        `json:"last_updated,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Attr returns the named attribute or an empty string.
func (w WorkItem) Attr(key string) string {
	if w.Attributes == nil {
		return ""
	}
	return w.Attributes[key]
}

// IsStale reports whether the item was last updated before cutoff.
// Items that were never updated are always stale.
func (w WorkItem) IsStale(cutoff time.Time) bool {
	if w.LastUpdated == nil {
		return true
	}
	return w.LastUpdated.Before(cutoff)
}

// RecordKind names the table or collection a Record belongs to.
type RecordKind string

const (
	RecordKindAirline       RecordKind = "airline"
	RecordKindAirport       RecordKind = "airport"
	RecordKindPetPolicy     RecordKind = "pet_policy"
	RecordKindCountryPolicy RecordKind = "country_policy"
)

// Record is a semantic record produced by an item operation.
// Fields carries the meaningful content; UpdatedAt is bookkeeping and never
// participates in change detection.
type Record struct {
	Kind      RecordKind     `json:"kind"`
	Key       string         `json:"key"`
	Fields    map[string]any `json:"fields"`
	Signature string         `json:"signature,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Airline is reference data for a carrier.
type Airline struct {
	ID          string     `json:"id"`
	IATACode    string     `json:"iata_code"`
	ICAOCode    string     `json:"icao_code,omitempty"`
	Name        string     `json:"name"`
	Country     string     `json:"country,omitempty"`
	Website     string     `json:"website,omitempty"`
	Active      bool       `json:"active"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// Record converts the airline into its gated representation.
func (a Airline) Record() Record {
	return Record{
		Kind: RecordKindAirline,
		Key:  a.ID,
		Fields: map[string]any{
			"iata_code": a.IATACode,
			"icao_code": a.ICAOCode,
			"name":      a.Name,
			"country":   a.Country,
			"website":   a.Website,
			"active":    a.Active,
		},
	}
}

// Airport is reference data for an airport.
type Airport struct {
	ID          string     `json:"id"`
	IATACode    string     `json:"iata_code"`
	Name        string     `json:"name"`
	City        string     `json:"city,omitempty"`
	Country     string     `json:"country,omitempty"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Timezone    string     `json:"timezone,omitempty"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// Record converts the airport into its gated representation.
func (a Airport) Record() Record {
	return Record{
		Kind: RecordKindAirport,
		Key:  a.ID,
		Fields: map[string]any{
			"iata_code": a.IATACode,
			"name":      a.Name,
			"city":      a.City,
			"country":   a.Country,
			"latitude":  a.Latitude,
			"longitude": a.Longitude,
			"timezone":  a.Timezone,
		},
	}
}

// PetPolicy is an airline's policy for travelling with pets.
type PetPolicy struct {
	AirlineID         string   `json:"airline_id"`
	CabinAllowed      bool     `json:"cabin_allowed"`
	CargoAllowed      bool     `json:"cargo_allowed"`
	MaxCabinWeightKg  float64  `json:"max_cabin_weight_kg"`
	CarrierDimensions string   `json:"carrier_dimensions,omitempty"`
	AllowedSpecies    []string `json:"allowed_species,omitempty"`
	BreedRestrictions []string `json:"breed_restrictions,omitempty"`
	RequiredDocuments []string `json:"required_documents,omitempty"`
	Fees              string   `json:"fees,omitempty"`
	PolicyURL         string   `json:"policy_url,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

// Record converts the policy into its gated representation.
func (p PetPolicy) Record() Record {
	return Record{
		Kind: RecordKindPetPolicy,
		Key:  p.AirlineID,
		Fields: map[string]any{
			"cabin_allowed":       p.CabinAllowed,
			"cargo_allowed":       p.CargoAllowed,
			"max_cabin_weight_kg": p.MaxCabinWeightKg,
			"carrier_dimensions":  p.CarrierDimensions,
			"allowed_species":     anySlice(p.AllowedSpecies),
			"breed_restrictions":  anySlice(p.BreedRestrictions),
			"required_documents":  anySlice(p.RequiredDocuments),
			"fees":                p.Fees,
			"policy_url":          p.PolicyURL,
			"notes":               p.Notes,
		},
	}
}

// CountryPolicy describes pet import rules for a country.
type CountryPolicy struct {
	CountryCode          string   `json:"country_code"`
	QuarantineRequired   bool     `json:"quarantine_required"`
	QuarantineDays       int      `json:"quarantine_days"`
	MicrochipRequired    bool     `json:"microchip_required"`
	RabiesVaccination    bool     `json:"rabies_vaccination"`
	TiterTestRequired    bool     `json:"titer_test_required"`
	RequiredDocuments    []string `json:"required_documents,omitempty"`
	ImportPermitRequired bool     `json:"import_permit_required"`
	PolicyURL            string   `json:"policy_url,omitempty"`
	Notes                string   `json:"notes,omitempty"`
}

// Record converts the policy into its gated representation.
func (c CountryPolicy) Record() Record {
	return Record{
		Kind: RecordKindCountryPolicy,
		Key:  c.CountryCode,
		Fields: map[string]any{
			"quarantine_required":    c.QuarantineRequired,
			"quarantine_days":        c.QuarantineDays,
			"microchip_required":     c.MicrochipRequired,
			"rabies_vaccination":     c.RabiesVaccination,
			"titer_test_required":    c.TiterTestRequired,
			"required_documents":     anySlice(c.RequiredDocuments),
			"import_permit_required": c.ImportPermitRequired,
			"policy_url":             c.PolicyURL,
			"notes":                  c.Notes,
		},
	}
}

func anySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
