package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPClient talks to the inventory service over its REST contract.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient constructs an inventory client for the given base URL.
func NewHTTPClient(baseURL string, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (c *HTTPClient) SearchByProductIDs(ctx context.Context, productIDs []string, page PageRequest) ([]Item, error) {
	query := url.Values{}
	for _, id := range productIDs {
		query.Add("productId", id)
	}
	query.Set("page", strconv.Itoa(page.Page))
	if page.Size > 0 {
		query.Set("size", strconv.Itoa(page.Size))
	}

	endpoint := c.baseURL + "/inventoryItems/search/productIdIn?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var items []Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode inventory items: %w", err)
	}
	return items, nil
}

func (c *HTTPClient) ChangeQuantity(ctx context.Context, changes []QuantityChange) ([]QuantityChange, error) {
	body, err := json.Marshal(changes)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/inventoryItemQuantityChanges"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var applied []QuantityChange
	if err := json.NewDecoder(resp.Body).Decode(&applied); err != nil {
		return nil, fmt.Errorf("decode applied changes: %w", err)
	}
	return applied, nil
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrUnknownItem, code)
	default:
		return fmt.Errorf("inventory: unexpected status %d", code)
	}
}
