package anchor

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/yourorg/custodian/internal/apperr"
)

// PriceFeed returns the current reference value recorded in every block.
type PriceFeed interface {
	Price(ctx context.Context) (string, error)
}

// HTTPPriceFeed reads a single field out of a JSON price endpoint.
type HTTPPriceFeed struct {
	url    string
	field  string
	client *http.Client
}

func NewHTTPPriceFeed(cfg Config, client *http.Client) *HTTPPriceFeed {
	if client == nil {
		client = &http.Client{Timeout: cfg.PriceFeedTimeout}
	}
	return &HTTPPriceFeed{url: cfg.PriceFeedURL, field: cfg.PriceFeedField, client: client}
}

func (f *HTTPPriceFeed) Price(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", apperr.DependencyError{Dependency: "price feed", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return "", apperr.DependencyError{Dependency: "price feed", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperr.DependencyError{Dependency: "price feed", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperr.DependencyError{Dependency: "price feed", Err: err}
	}
	value := gjson.GetBytes(body, f.field)
	if !value.Exists() || value.String() == "" {
		return "", apperr.DependencyError{Dependency: "price feed", Err: fmt.Errorf("field %q missing from response", f.field)}
	}
	return value.String(), nil
}
