package normalisers

import (
	"sort"
	"strings"
	"sync"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.NormaliserRegistry = (*Registry)(nil)

// AnyKind matches every record kind.
const AnyKind domain.RecordKind = "*"

// Registry implements NormaliserRegistry.
// Every normaliser matching a record's kind is applied, lowest priority first,
// so kind-specific normalisers see values already cleaned by generic ones.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates a new normaliser registry.
func NewRegistry() *Registry {
	return &Registry{
		normalisers: make([]driven.Normaliser, 0),
	}
}

// Register registers a normaliser.
func (r *Registry) Register(normaliser driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.normalisers = append(r.normalisers, normaliser)
}

// GetAll retrieves all normalisers that match a kind, sorted by priority (highest first).
func (r *Registry) GetAll(kind domain.RecordKind) []driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []driven.Normaliser
	for _, n := range r.normalisers {
		if matchesKind(n.SupportedKinds(), kind) {
			matches = append(matches, n)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Priority() > matches[j].Priority()
	})
	return matches
}

// Normalise applies every matching normaliser to record in place.
func (r *Registry) Normalise(record *domain.Record) {
	if record == nil || record.Fields == nil {
		return
	}
	matches := r.GetAll(record.Kind)
	for i := len(matches) - 1; i >= 0; i-- {
		matches[i].Normalise(record)
	}
}

// List returns all kinds with a dedicated normaliser.
func (r *Registry) List() []domain.RecordKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kindSet := make(map[domain.RecordKind]struct{})
	for _, n := range r.normalisers {
		for _, k := range n.SupportedKinds() {
			if k != AnyKind {
				kindSet[k] = struct{}{}
			}
		}
	}

	kinds := make([]domain.RecordKind, 0, len(kindSet))
	for k := range kindSet {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func matchesKind(supported []domain.RecordKind, kind domain.RecordKind) bool {
	for _, s := range supported {
		if s == AnyKind || s == kind {
			return true
		}
	}
	return false
}

// DefaultRegistry creates a registry with the built-in normalisers.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(&WhitespaceNormaliser{})
	r.Register(&CodeNormaliser{})
	r.Register(&PolicyTextNormaliser{})

	return r
}

// WhitespaceNormaliser trims and collapses whitespace in every string value.
type WhitespaceNormaliser struct{}

func (n *WhitespaceNormaliser) Normalise(record *domain.Record) {
	for k, v := range record.Fields {
		record.Fields[k] = mapStrings(v, collapseSpace)
	}
}

func (n *WhitespaceNormaliser) SupportedKinds() []domain.RecordKind {
	return []domain.RecordKind{AnyKind}
}

func (n *WhitespaceNormaliser) Priority() int {
	return 1 // Lowest priority - runs first
}

// codeFields hold ISO and IATA/ICAO codes.
var codeFields = []string{"iata_code", "icao_code", "country", "country_code"}

// CodeNormaliser upper-cases reference codes and strips trailing slashes from URLs.
type CodeNormaliser struct{}

func (n *CodeNormaliser) Normalise(record *domain.Record) {
	for _, k := range codeFields {
		if s, ok := record.Fields[k].(string); ok {
			record.Fields[k] = strings.ToUpper(s)
		}
	}
	for _, k := range []string{"website", "policy_url"} {
		if s, ok := record.Fields[k].(string); ok {
			record.Fields[k] = strings.TrimRight(s, "/")
		}
	}
}

func (n *CodeNormaliser) SupportedKinds() []domain.RecordKind {
	return []domain.RecordKind{
		domain.RecordKindAirline,
		domain.RecordKindAirport,
		domain.RecordKindPetPolicy,
		domain.RecordKindCountryPolicy,
	}
}

func (n *CodeNormaliser) Priority() int {
	return 50
}

// policyTextFields are free-text answers that may carry markup.
var policyTextFields = []string{"notes", "fees", "carrier_dimensions"}

// policyListFields are string lists compared without regard to case or duplicates.
var policyListFields = []string{"allowed_species", "breed_restrictions", "required_documents"}

// PolicyTextNormaliser cleans analyzer output: markup is stripped from
// free text and string lists are deduplicated case-insensitively and sorted.
type PolicyTextNormaliser struct{}

func (n *PolicyTextNormaliser) Normalise(record *domain.Record) {
	for _, k := range policyTextFields {
		if s, ok := record.Fields[k].(string); ok {
			record.Fields[k] = stripMarkup(s)
		}
	}
	for _, k := range policyListFields {
		if list, ok := record.Fields[k].([]any); ok {
			record.Fields[k] = canonicalList(list)
		}
	}
}

func (n *PolicyTextNormaliser) SupportedKinds() []domain.RecordKind {
	return []domain.RecordKind{domain.RecordKindPetPolicy, domain.RecordKindCountryPolicy}
}

func (n *PolicyTextNormaliser) Priority() int {
	return 60
}

// Helper functions

// mapStrings applies fn to every string inside v, descending into lists and maps.
func mapStrings(v any, fn func(string) string) any {
	switch t := v.(type) {
	case string:
		return fn(t)
	case []any:
		for i, child := range t {
			t[i] = mapStrings(child, fn)
		}
		return t
	case []string:
		for i, s := range t {
			t[i] = fn(s)
		}
		return t
	case map[string]any:
		for k, child := range t {
			t[k] = mapStrings(child, fn)
		}
		return t
	}
	return v
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func canonicalList(list []any) []any {
	seen := make(map[string]struct{}, len(list))
	out := make([]any, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			out = append(out, v)
			continue
		}
		s = collapseSpace(stripMarkup(s))
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := out[i].(string)
		b, bok := out[j].(string)
		return aok && bok && strings.ToLower(a) < strings.ToLower(b)
	})
	return out
}

func stripMarkup(content string) string {
	content = removeHTMLBlocks(content, "script")
	content = removeHTMLBlocks(content, "style")
	if strings.ContainsRune(content, '<') {
		content = stripHTMLTags(content)
	}
	content = decodeHTMLEntities(content)
	return collapseSpace(content)
}

func removeHTMLBlocks(content, tagName string) string {
	result := content
	startTag := "<" + tagName
	endTag := "</" + tagName + ">"

	for {
		lower := strings.ToLower(result)
		startIdx := strings.Index(lower, startTag)
		if startIdx == -1 {
			break
		}
		endIdx := strings.Index(lower[startIdx:], endTag)
		if endIdx == -1 {
			break
		}
		result = result[:startIdx] + result[startIdx+endIdx+len(endTag):]
	}
	return result
}

func stripHTMLTags(content string) string {
	var result strings.Builder
	inTag := false

	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	return result.String()
}

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", "\"",
	"&apos;", "'",
	"&#39;", "'",
	"&ndash;", "-",
	"&mdash;", "-",
	"&hellip;", "...",
)

func decodeHTMLEntities(content string) string {
	return entityReplacer.Replace(content)
}
