// Package marketplace implements the listing-source port against the
// marketplace's public offer API.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"OfferTracker/internal/domain"
	"OfferTracker/internal/ports"
)

const userAgent = "Mozilla/5.0"

// Client issues listing queries against the marketplace API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ ports.ListingSource = (*Client)(nil)

// NewClient wires an HTTP client; the default carries a 15s timeout.
func NewClient(baseURL string, client *http.Client, logger *slog.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Fetch issues a single GET for the newest listings of a category.
func (c *Client) Fetch(ctx context.Context, categoryID string, limit int) ([]domain.RawListing, error) {
	query := url.Values{}
	query.Set("category_id", categoryID)
	query.Set("limit", strconv.Itoa(limit))
	query.Set("sort_by", "created_at:desc")
	endpoint := fmt.Sprintf("%s/offers/?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request listings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marketplace returned %s", resp.Status)
	}

	var payload struct {
		Data []domain.RawListing `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug("listings fetched", "category", categoryID, "count", len(payload.Data))
	}
	return payload.Data, nil
}
