package screening

import (
	"fmt"
	"strings"
)

// Intent is a normalized screening request. Limit is nil when the caller did
// not specify one; the default is applied at ranking time.
type Intent struct {
	Action  string    `json:"intent"`
	Sector  string    `json:"sector,omitempty"`
	Limit   *int      `json:"limit,omitempty"`
	Metrics []Metric  `json:"metrics"`
	Filters FilterSet `json:"filters,omitempty"`
}

// baselineMetrics are always surfaced regardless of what the caller asked
// for. Product policy, not user input.
var baselineMetrics = []Metric{MetricPrice, MetricPERatio}

// sectorAliases maps normalized user phrasing to canonical sector labels.
// Canonical labels normalize to themselves so an already-resolved intent
// survives a second pass.
var sectorAliases = map[string]string{
	"tech":                   "Information Technology",
	"technology":             "Information Technology",
	"information_technology": "Information Technology",
	"energy":                 "Energy",
	"health_care":            "Health Care",
	"healthcare":             "Health Care",
	"financials":             "Financials",
	"discretionary":          "Consumer Discretionary",
	"consumer_discretionary": "Consumer Discretionary",
	"staples":                "Consumer Staples",
	"consumer_staples":       "Consumer Staples",
	"industrials":            "Industrials",
	"materials":              "Materials",
	"utilities":              "Utilities",
	"reit":                   "Real Estate",
	"real_estate":            "Real Estate",
	"communication":          "Communication Services",
	"communication_services": "Communication Services",
}

// canonicalSectors lists the valid sector labels in presentation order.
var canonicalSectors = []string{
	"Information Technology",
	"Energy",
	"Health Care",
	"Financials",
	"Consumer Discretionary",
	"Consumer Staples",
	"Industrials",
	"Materials",
	"Utilities",
	"Real Estate",
	"Communication Services",
}

// NormalizeSector resolves a raw sector string to its canonical label.
// Matching is case-insensitive with whitespace collapsed to underscores.
func NormalizeSector(raw string) (string, bool) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
	canonical, ok := sectorAliases[key]
	return canonical, ok
}

// ValidSectors returns the canonical sector labels.
func ValidSectors() []string {
	out := make([]string, len(canonicalSectors))
	copy(out, canonicalSectors)
	return out
}

// Clarification asks the caller to supply missing or corrected input. It is
// a normal outcome, not an error.
type Clarification struct {
	Message      string   `json:"message"`
	ValidSectors []string `json:"validSectors,omitempty"`
}

// Resolution is the outcome of intent resolution: exactly one of Intent or
// Clarification is set.
type Resolution struct {
	Intent        *Intent
	Clarification *Clarification
}

// ResolveIntent merges a freshly parsed intent with the prior turn's intent
// and normalizes the sector.
//
// Baseline metrics are injected unconditionally before any merge. When the
// parsed intent carries no filters and the prior turn does, the turn is a
// follow-up: the prior filters are adopted wholesale, the prior limit fills
// a missing limit, and the metric lists are unioned. A parsed intent that
// specifies its own filters ignores the prior turn entirely.
func ResolveIntent(parsed Intent, prior *Intent) Resolution {
	out := cloneIntent(parsed)
	out.Metrics = unionMetrics(out.Metrics, baselineMetrics)

	if len(out.Filters) == 0 && prior != nil && len(prior.Filters) > 0 {
		out.Filters = append(FilterSet(nil), prior.Filters...)
		if out.Limit == nil && prior.Limit != nil {
			l := *prior.Limit
			out.Limit = &l
		}
		out.Metrics = unionMetrics(out.Metrics, prior.Metrics)
	}

	if strings.TrimSpace(out.Sector) == "" {
		return Resolution{Clarification: &Clarification{
			Message: "Missing sector in query. Please specify a valid sector.",
		}}
	}

	canonical, ok := NormalizeSector(out.Sector)
	if !ok {
		return Resolution{Clarification: &Clarification{
			Message: fmt.Sprintf("'%s' is not a valid sector. Please try one of: %s",
				out.Sector, strings.Join(ValidSectors(), ", ")),
			ValidSectors: ValidSectors(),
		}}
	}
	out.Sector = canonical

	if out.Action == "" {
		out.Action = "screen"
	}

	return Resolution{Intent: &out}
}

func cloneIntent(in Intent) Intent {
	out := in
	out.Metrics = append([]Metric(nil), in.Metrics...)
	out.Filters = append(FilterSet(nil), in.Filters...)
	if in.Limit != nil {
		l := *in.Limit
		out.Limit = &l
	}
	return out
}

// unionMetrics appends the extras not already present, preserving order.
func unionMetrics(base, extra []Metric) []Metric {
	out := append([]Metric(nil), base...)
	seen := make(map[Metric]bool, len(out))
	for _, m := range out {
		seen[m] = true
	}
	for _, m := range extra {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
