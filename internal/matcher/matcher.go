// Package matcher evaluates raw marketplace listings against observation
// criteria. Matching is a pure function of its inputs.
package matcher

import (
	"strconv"
	"strings"

	"OfferTracker/internal/domain"
	"OfferTracker/internal/format"
)

// Configured maximums at or above this value impose no upper price bound.
const priceCeilingSentinel = 10000

const priceParamKey = "price"

// Match returns the listings satisfying every constraint of the
// observation, order preserved. Paid placements are dropped before any
// other check.
func Match(obs domain.Observation, listings []domain.RawListing) []domain.RawListing {
	groups := keywordGroups(obs.Keywords)

	matched := make([]domain.RawListing, 0, len(listings))
	for _, l := range listings {
		if l.Promotion.Paid() {
			continue
		}
		if !matchesCriteria(obs.Criteria, l) {
			continue
		}
		if !matchesKeywords(groups, l) {
			continue
		}
		matched = append(matched, l)
	}
	return matched
}

func matchesCriteria(c domain.Criteria, l domain.RawListing) bool {
	if !matchesPrice(c, l) {
		return false
	}

	for _, constraint := range c.Params {
		if constraint.Value == "" {
			continue
		}
		param, ok := l.Param(constraint.Key)
		if !ok || param.Value.Text() != constraint.Value {
			return false
		}
	}
	return true
}

func matchesPrice(c domain.Criteria, l domain.RawListing) bool {
	min, hasMin := parseBound(c.PriceMin)
	max, hasMax := parseBound(c.PriceMax)
	if hasMax && max >= priceCeilingSentinel {
		hasMax = false
	}
	if !hasMin && !hasMax {
		return true
	}

	param, ok := l.Param(priceParamKey)
	if !ok {
		return false
	}
	price, ok := param.Value.Float()
	if !ok {
		return false
	}

	if hasMin && price < min {
		return false
	}
	if hasMax && price > max {
		return false
	}
	return true
}

// parseBound treats empty and malformed bounds as absent.
func parseBound(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// matchesKeywords reports whether at least one OR-group has all of its
// AND-terms present in the title or description. An empty expression is
// vacuously true.
func matchesKeywords(groups [][]string, l domain.RawListing) bool {
	if len(groups) == 0 {
		return true
	}

	title := strings.ToLower(l.Title)
	desc := strings.ToLower(format.PlainText(l.Description))

	for _, group := range groups {
		if groupMatches(group, title, desc) {
			return true
		}
	}
	return false
}

func groupMatches(terms []string, title, desc string) bool {
	for _, term := range terms {
		if !strings.Contains(title, term) && !strings.Contains(desc, term) {
			return false
		}
	}
	return true
}

// keywordGroups splits the expression into OR-groups on ";" and each group
// into AND-terms on whitespace, lowercased. Blank groups are skipped.
func keywordGroups(expr string) [][]string {
	expr = strings.ToLower(strings.TrimSpace(expr))
	if expr == "" {
		return nil
	}

	var groups [][]string
	for _, raw := range strings.Split(expr, ";") {
		terms := strings.Fields(raw)
		if len(terms) == 0 {
			continue
		}
		groups = append(groups, terms)
	}
	return groups
}
