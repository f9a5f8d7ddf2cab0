package matcher

import (
	"encoding/json"
	"testing"

	"OfferTracker/internal/domain"
)

func priced(id int64, title string, price string) domain.RawListing {
	return domain.RawListing{
		ID:    id,
		Title: title,
		Params: []domain.Param{
			{Key: "price", Value: domain.ParamValue{
				Label: price + " zł",
				Value: json.RawMessage(price),
			}},
		},
	}
}

func TestMatchExcludesPaidPlacements(t *testing.T) {
	t.Parallel()

	listings := []domain.RawListing{
		{ID: 1, Title: "organic"},
		{ID: 2, Title: "highlighted", Promotion: domain.Promotion{Highlighted: true}},
		{ID: 3, Title: "top ad", Promotion: domain.Promotion{TopAd: true}},
	}

	matched := Match(domain.Observation{CategoryID: "9"}, listings)
	if len(matched) != 1 || matched[0].ID != 1 {
		t.Fatalf("expected only the organic listing, got %v", matched)
	}
}

func TestMatchKeywordExpression(t *testing.T) {
	t.Parallel()

	obs := domain.Observation{CategoryID: "9", Keywords: "a b;c"}

	tests := []struct {
		name    string
		listing domain.RawListing
		want    bool
	}{
		{name: "both AND terms in title", listing: domain.RawListing{ID: 1, Title: "Alpha beta thing"}, want: true},
		{name: "OR group in description", listing: domain.RawListing{ID: 2, Title: "nothing", Description: "has C inside"}, want: true},
		{name: "only one AND term", listing: domain.RawListing{ID: 3, Title: "only alpha here"}, want: false},
		{name: "no group matches", listing: domain.RawListing{ID: 4, Title: "nothing", Description: "nothing"}, want: false},
		{name: "term split across title and description", listing: domain.RawListing{ID: 5, Title: "a word", Description: "b word"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched := Match(obs, []domain.RawListing{tt.listing})
			if got := len(matched) == 1; got != tt.want {
				t.Fatalf("match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchEmptyKeywordsIsVacuous(t *testing.T) {
	t.Parallel()

	matched := Match(domain.Observation{CategoryID: "9"}, []domain.RawListing{{ID: 1, Title: "anything"}})
	if len(matched) != 1 {
		t.Fatalf("expected vacuous keyword filter, got %v", matched)
	}
}

func TestMatchKeywordsInHTMLDescription(t *testing.T) {
	t.Parallel()

	obs := domain.Observation{CategoryID: "9", Keywords: "condition"}
	listing := domain.RawListing{ID: 1, Title: "phone", Description: "<p>great <b>Condition</b>, barely used</p>"}

	if matched := Match(obs, []domain.RawListing{listing}); len(matched) != 1 {
		t.Fatalf("expected HTML description to match, got %v", matched)
	}
}

func TestMatchPriceMin(t *testing.T) {
	t.Parallel()

	obs := domain.Observation{CategoryID: "9", Criteria: domain.Criteria{PriceMin: "100"}}
	listings := []domain.RawListing{
		priced(1, "cheap", "99"),
		priced(2, "exact", "100"),
		{ID: 3, Title: "no price"},
	}

	matched := Match(obs, listings)
	if len(matched) != 1 || matched[0].ID != 2 {
		t.Fatalf("expected only the listing priced 100, got %v", matched)
	}
}

func TestMatchPriceMaxSentinel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		priceMax string
		price    string
		want     bool
	}{
		{name: "below sentinel enforces bound", priceMax: "9999", price: "10000", want: false},
		{name: "below sentinel keeps cheaper", priceMax: "9999", price: "9999", want: true},
		{name: "at sentinel imposes no bound", priceMax: "10000", price: "10000", want: true},
		{name: "above sentinel imposes no bound", priceMax: "15000", price: "99999", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := domain.Observation{CategoryID: "9", Criteria: domain.Criteria{PriceMax: tt.priceMax}}
			matched := Match(obs, []domain.RawListing{priced(1, "thing", tt.price)})
			if got := len(matched) == 1; got != tt.want {
				t.Fatalf("match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchMalformedBoundIsIgnored(t *testing.T) {
	t.Parallel()

	obs := domain.Observation{CategoryID: "9", Criteria: domain.Criteria{PriceMin: "cheap"}}
	if matched := Match(obs, []domain.RawListing{priced(1, "thing", "50")}); len(matched) != 1 {
		t.Fatalf("malformed bound should be a no-op, got %v", matched)
	}
}

func TestMatchParamConstraints(t *testing.T) {
	t.Parallel()

	withState := domain.RawListing{
		ID:    1,
		Title: "used phone",
		Params: []domain.Param{
			{Key: "state", Value: domain.ParamValue{Key: "used", Label: "Używane"}},
		},
	}
	withRawValue := domain.RawListing{
		ID:    2,
		Title: "phone",
		Params: []domain.Param{
			{Key: "color", Value: domain.ParamValue{Value: json.RawMessage(`"black"`)}},
		},
	}

	tests := []struct {
		name    string
		params  []domain.ParamConstraint
		listing domain.RawListing
		want    bool
	}{
		{name: "inner key preferred", params: []domain.ParamConstraint{{Key: "state", Value: "used"}}, listing: withState, want: true},
		{name: "raw value fallback", params: []domain.ParamConstraint{{Key: "color", Value: "black"}}, listing: withRawValue, want: true},
		{name: "value mismatch", params: []domain.ParamConstraint{{Key: "state", Value: "new"}}, listing: withState, want: false},
		{name: "missing param excludes", params: []domain.ParamConstraint{{Key: "brand", Value: "acme"}}, listing: withState, want: false},
		{name: "empty constraint is a no-op", params: []domain.ParamConstraint{{Key: "brand", Value: ""}}, listing: withState, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := domain.Observation{CategoryID: "9", Criteria: domain.Criteria{Params: tt.params}}
			matched := Match(obs, []domain.RawListing{tt.listing})
			if got := len(matched) == 1; got != tt.want {
				t.Fatalf("match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchPreservesOrder(t *testing.T) {
	t.Parallel()

	listings := []domain.RawListing{
		priced(3, "first", "300"),
		priced(1, "second", "100"),
		priced(2, "third", "200"),
	}

	matched := Match(domain.Observation{CategoryID: "9"}, listings)
	if len(matched) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matched))
	}
	for i, want := range []int64{3, 1, 2} {
		if matched[i].ID != want {
			t.Fatalf("position %d: got id %d, want %d", i, matched[i].ID, want)
		}
	}
}
