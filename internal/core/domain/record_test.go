package domain

import (
	"testing"
	"time"
)

func TestWorkItem_IsStale(t *testing.T) {
	cutoff := time.Now().Add(-time.Hour)
	old := cutoff.Add(-time.Minute)
	fresh := cutoff.Add(time.Minute)

	if !(WorkItem{}).IsStale(cutoff) {
		t.Error("expected never-updated item to be stale")
	}
	if !(WorkItem{LastUpdated: &old}).IsStale(cutoff) {
		t.Error("expected old item to be stale")
	}
	if (WorkItem{LastUpdated: &fresh}).IsStale(cutoff) {
		t.Error("expected fresh item not to be stale")
	}
}

func TestWorkItem_Attr(t *testing.T) {
	if (WorkItem{}).Attr("iata_code") != "" {
		t.Error("expected empty attribute on nil map")
	}
	item := WorkItem{Attributes: map[string]string{"iata_code": "LH"}}
	if item.Attr("iata_code") != "LH" {
		t.Error("expected attribute value")
	}
}

func TestRecords(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		kind RecordKind
		key  string
	}{
		{"airline", Airline{ID: "a1", IATACode: "LH"}.Record(), RecordKindAirline, "a1"},
		{"airport", Airport{ID: "p1", IATACode: "FRA"}.Record(), RecordKindAirport, "p1"},
		{"pet policy", PetPolicy{AirlineID: "a1", AllowedSpecies: []string{"dog"}}.Record(), RecordKindPetPolicy, "a1"},
		{"country policy", CountryPolicy{CountryCode: "DE"}.Record(), RecordKindCountryPolicy, "DE"},
	}

	for _, tt := range tests {
		if tt.rec.Kind != tt.kind || tt.rec.Key != tt.key {
			t.Errorf("%s: got kind %s key %s", tt.name, tt.rec.Kind, tt.rec.Key)
		}
		if len(tt.rec.Fields) == 0 {
			t.Errorf("%s: expected fields", tt.name)
		}
		if _, ok := tt.rec.Fields["updated_at"]; ok {
			t.Errorf("%s: bookkeeping must not be part of fields", tt.name)
		}
	}
}
