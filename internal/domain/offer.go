package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Observation is a saved search tracked against the marketplace.
type Observation struct {
	ID         string
	CategoryID string
	Keywords   string
	Criteria   Criteria
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Criteria groups the attribute constraints of an observation. Price bounds
// keep their raw string form as submitted; parsing happens at match time so
// a malformed bound degrades to a no-op instead of failing the observation.
type Criteria struct {
	PriceMin string
	PriceMax string
	Params   []ParamConstraint
}

// ParamConstraint requires a listing parameter of Key whose value equals
// Value. An empty Value is a no-op.
type ParamConstraint struct {
	Key   string
	Value string
}

// Param returns the constraint for key, if present.
func (c Criteria) Param(key string) (ParamConstraint, bool) {
	for _, p := range c.Params {
		if p.Key == key {
			return p, true
		}
	}
	return ParamConstraint{}, false
}

// FilterSnapshot flattens the observation criteria into the shape stored
// alongside durable offers.
func (o Observation) FilterSnapshot() map[string]string {
	snapshot := map[string]string{
		"observationId": o.ID,
		"categoryId":    o.CategoryID,
	}
	if o.Keywords != "" {
		snapshot["keywords"] = o.Keywords
	}
	if o.Criteria.PriceMin != "" {
		snapshot["priceMin"] = o.Criteria.PriceMin
	}
	if o.Criteria.PriceMax != "" {
		snapshot["priceMax"] = o.Criteria.PriceMax
	}
	for _, p := range o.Criteria.Params {
		if p.Value != "" {
			snapshot[p.Key] = p.Value
		}
	}
	return snapshot
}

// RawListing mirrors a single record of the marketplace listing API.
type RawListing struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	URL             string    `json:"url"`
	CreatedTime     string    `json:"created_time"`
	LastRefreshTime string    `json:"last_refresh_time"`
	Photos          []Photo   `json:"photos"`
	Params          []Param   `json:"params"`
	Promotion       Promotion `json:"promotion"`
}

// Param lookups by key; the API repeats keys only for multi-value params,
// the first occurrence wins as in the upstream payload order.
func (l RawListing) Param(key string) (Param, bool) {
	for _, p := range l.Params {
		if p.Key == key {
			return p, true
		}
	}
	return Param{}, false
}

// Photo carries a single listing image link. The link embeds a
// ";s={width}x{height}" size placeholder.
type Photo struct {
	Link string `json:"link"`
}

// Param is a typed key/value attribute attached to a listing.
type Param struct {
	Key   string     `json:"key"`
	Name  string     `json:"name"`
	Value ParamValue `json:"value"`
}

// ParamValue is the heterogeneous value object of a listing parameter.
// Numeric fields stay raw so a malformed value never fails the whole
// listing decode.
type ParamValue struct {
	Key           string          `json:"key"`
	Label         string          `json:"label"`
	Value         json.RawMessage `json:"value"`
	PreviousValue json.RawMessage `json:"previous_value"`
}

// Float parses the numeric value, accepting bare and quoted numbers.
func (v ParamValue) Float() (float64, bool) {
	return parseRawFloat(v.Value)
}

// PreviousFloat parses the previous numeric value if the marketplace
// reported one.
func (v ParamValue) PreviousFloat() (float64, bool) {
	return parseRawFloat(v.PreviousValue)
}

// Text returns the comparable form of the value: the inner key when set,
// otherwise the raw value stripped of quotes.
func (v ParamValue) Text() string {
	if v.Key != "" {
		return v.Key
	}
	return strings.Trim(strings.TrimSpace(string(v.Value)), `"`)
}

func parseRawFloat(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	s = strings.Trim(s, `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Promotion carries the paid-placement flags of a listing.
type Promotion struct {
	Highlighted bool `json:"highlighted"`
	TopAd       bool `json:"top_ad"`
}

// Paid reports whether the listing is a paid placement rather than an
// organic result.
func (p Promotion) Paid() bool {
	return p.Highlighted || p.TopAd
}

// FormattedOffer is the display-ready projection of a raw listing.
type FormattedOffer struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	URL             string `json:"url"`
	Price           string `json:"price"`
	ImageURL        string `json:"imageUrl"`
	Timestamp       int64  `json:"timestamp"`
	LastRefreshTime string `json:"lastRefreshTime,omitempty"`
	IsNew           bool   `json:"isNew"`
}

// StoredOffer is the durable snapshot of a matched listing.
type StoredOffer struct {
	ID              string            `json:"id"`
	LastRefreshTime *time.Time        `json:"last_refresh_time"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	URL             string            `json:"url"`
	Filters         map[string]string `json:"filters"`
	Value           *float64          `json:"value"`
	PreviousValue   *float64          `json:"previous_value"`
	Condition       string            `json:"stan"`
}

// FilterDefinition describes one attribute filter applicable to a category,
// taken from the filter-definition document.
type FilterDefinition struct {
	Key    string          `json:"key"`
	Label  string          `json:"label"`
	Values json.RawMessage `json:"values"`
}

// Category is a node of the marketplace category taxonomy.
type Category struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	Subcategories []Category `json:"subcategories,omitempty"`
}
