package ai

import (
	"fmt"
	"strings"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

const airlineSystemPrompt = `You research airline pet-travel policies.
Answer with a single JSON object and nothing else, using these keys:
cabin_allowed (bool), cargo_allowed (bool), max_cabin_weight_kg (number),
carrier_dimensions (string), allowed_species (array of strings),
breed_restrictions (array of strings), required_documents (array of strings),
fees (string), policy_url (string), notes (string).
Use false, 0 or empty values when the policy is unknown.`

const countrySystemPrompt = `You research pet import rules for countries.
Answer with a single JSON object {"countries": [...]} and nothing else.
Each entry has: country_code (ISO 3166-1 alpha-2 string), quarantine_required (bool),
quarantine_days (integer), microchip_required (bool), rabies_vaccination (bool),
titer_test_required (bool), required_documents (array of strings),
import_permit_required (bool), policy_url (string), notes (string).
Include exactly one entry per requested country.`

func airlinePrompt(airline domain.WorkItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Airline: %s", airline.Name)
	if code := airline.Attr("iata_code"); code != "" {
		fmt.Fprintf(&b, " (IATA %s)", code)
	}
	if site := airline.Attr("website"); site != "" {
		fmt.Fprintf(&b, "\nWebsite: %s", site)
	}
	b.WriteString("\nDescribe the current policy for travelling with dogs and cats.")
	return b.String()
}

func countriesPrompt(countries []domain.WorkItem) string {
	var b strings.Builder
	b.WriteString("Countries:\n")
	for _, c := range countries {
		fmt.Fprintf(&b, "- %s: %s\n", c.ID, c.Name)
	}
	b.WriteString("Describe the rules for importing a dog or cat into each country.")
	return b.String()
}
