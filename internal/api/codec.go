package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"OfferTracker/internal/domain"
	"OfferTracker/internal/store"
)

// The observation wire format is schema-less: beyond the reserved keys,
// every scalar field is an attribute constraint.
var reservedKeys = map[string]bool{
	"id":          true,
	"offers":      true,
	"lastChecked": true,
	"createdAt":   true,
	"updatedAt":   true,
}

// observationBody is the decoded form of a create/patch request. Nil
// pointers mean the field was absent from the payload.
type observationBody struct {
	categoryID *string
	keywords   *string
	priceMin   *string
	priceMax   *string
	params     []domain.ParamConstraint
}

func decodeObservationBody(r *http.Request) (observationBody, error) {
	var raw map[string]any
	if err := decodeJSON(r, &raw); err != nil {
		return observationBody{}, err
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		if !reservedKeys[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var body observationBody
	for _, key := range keys {
		value := scalarString(raw[key])
		switch key {
		case "categoryId":
			body.categoryID = &value
		case "keywords":
			body.keywords = &value
		case "priceMin":
			body.priceMin = &value
		case "priceMax":
			body.priceMax = &value
		default:
			body.params = append(body.params, domain.ParamConstraint{Key: key, Value: value})
		}
	}
	return body, nil
}

// observation builds a fresh record from the body for creation.
func (b observationBody) observation() domain.Observation {
	obs := domain.Observation{}
	if b.categoryID != nil {
		obs.CategoryID = *b.categoryID
	}
	if b.keywords != nil {
		obs.Keywords = *b.keywords
	}
	if b.priceMin != nil {
		obs.Criteria.PriceMin = *b.priceMin
	}
	if b.priceMax != nil {
		obs.Criteria.PriceMax = *b.priceMax
	}
	obs.Criteria.Params = b.params
	return obs
}

// patch maps the body onto a field-by-field update.
func (b observationBody) patch() store.Patch {
	return store.Patch{
		CategoryID: b.categoryID,
		Keywords:   b.keywords,
		PriceMin:   b.priceMin,
		PriceMax:   b.priceMax,
		Params:     b.params,
	}
}

// observationView flattens an observation, its merged offers and the
// lastChecked timestamp into the response object.
func observationView(obs domain.Observation, offers []domain.FormattedOffer, lastChecked int64) map[string]any {
	if offers == nil {
		offers = []domain.FormattedOffer{}
	}
	view := map[string]any{
		"id":          obs.ID,
		"categoryId":  obs.CategoryID,
		"offers":      offers,
		"lastChecked": lastChecked,
		"createdAt":   obs.CreatedAt.UnixMilli(),
		"updatedAt":   obs.UpdatedAt.UnixMilli(),
	}
	if obs.Keywords != "" {
		view["keywords"] = obs.Keywords
	}
	if obs.Criteria.PriceMin != "" {
		view["priceMin"] = obs.Criteria.PriceMin
	}
	if obs.Criteria.PriceMax != "" {
		view["priceMax"] = obs.Criteria.PriceMax
	}
	for _, p := range obs.Criteria.Params {
		view[p.Key] = p.Value
	}
	return view
}

// scalarString renders a JSON scalar the way it was written: numbers keep
// their literal form, strings are trimmed, null clears the field.
func scalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(dst)
}
