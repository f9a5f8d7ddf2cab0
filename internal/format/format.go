// Package format projects raw marketplace listings into display and
// storage shapes. Parse failures are isolated per field so a single
// malformed record never aborts a batch.
package format

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"OfferTracker/internal/domain"
)

const (
	sizePlaceholder = ";s={width}x{height}"
	thumbSizeToken  = ";s=400x400"

	priceParamKey = "price"
	stateParamKey = "state"
)

// Listing refresh timestamps arrive as ISO-ish strings, usually with a
// zone offset, occasionally without.
var refreshTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Offer builds the display projection of a listing. The capture timestamp
// is wall-clock at format time (milliseconds), distinct from the listing's
// own last-refresh time.
func Offer(l domain.RawListing, now time.Time) domain.FormattedOffer {
	return domain.FormattedOffer{
		ID:              strconv.FormatInt(l.ID, 10),
		Title:           l.Title,
		URL:             l.URL,
		Price:           priceLabel(l),
		ImageURL:        imageURL(l),
		Timestamp:       now.UnixMilli(),
		LastRefreshTime: l.LastRefreshTime,
		IsNew:           true,
	}
}

// Offers maps a batch of listings, order preserved.
func Offers(listings []domain.RawListing, now time.Time) []domain.FormattedOffer {
	offers := make([]domain.FormattedOffer, 0, len(listings))
	for _, l := range listings {
		offers = append(offers, Offer(l, now))
	}
	return offers
}

// Stored builds the durable snapshot of a matched listing. The filters map
// is the observation criteria at match time.
func Stored(l domain.RawListing, filters map[string]string) domain.StoredOffer {
	offer := domain.StoredOffer{
		ID:          strconv.FormatInt(l.ID, 10),
		Title:       l.Title,
		Description: PlainText(l.Description),
		URL:         l.URL,
		Filters:     filters,
	}

	if param, ok := l.Param(priceParamKey); ok {
		if v, ok := param.Value.Float(); ok {
			offer.Value = &v
		}
		if prev, ok := param.Value.PreviousFloat(); ok {
			offer.PreviousValue = &prev
		}
	}

	if param, ok := l.Param(stateParamKey); ok {
		offer.Condition = param.Value.Key
	}

	if t, ok := parseRefreshTime(l.LastRefreshTime); ok {
		offer.LastRefreshTime = &t
	}

	return offer
}

// PlainText reduces listing HTML markup to its text content. Input without
// markup passes through untouched.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

func imageURL(l domain.RawListing) string {
	if len(l.Photos) == 0 {
		return ""
	}
	return strings.Replace(l.Photos[0].Link, sizePlaceholder, thumbSizeToken, 1)
}

func priceLabel(l domain.RawListing) string {
	if param, ok := l.Param(priceParamKey); ok && param.Value.Label != "" {
		return param.Value.Label
	}
	return "-"
}

func parseRefreshTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range refreshTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
