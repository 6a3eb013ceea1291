// Package stac implements the catalog search client of the
// land cover service. It talks to any STAC compatible search
// endpoint and resolves item assets into download URLs,
// optionally signed with a subscription key.
package stac

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"golang.org/x/net/context"
)

// ErrNoItems reports a search that matched nothing. It is
// deliberately distinct from ErrAssetNotFound so callers can
// tell "no data found" apart from "item found but asset missing".
var ErrNoItems = errors.New("catalog search returned no items")

var ErrAssetNotFound = errors.New("asset not found in catalog item")

const DefaultTimeout = 60 * time.Second

// ClientConfig is the explicit configuration of a catalog
// client. The subscription key augments the permissiveness
// of the signed asset URLs returned by catalogs that support
// signing. There is no ambient or global key lookup.
type ClientConfig struct {
	Endpoint        string
	SubscriptionKey string
	Timeout         time.Duration
}

type Client struct {
	endpoint        string
	subscriptionKey string
	client          *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint:        cfg.Endpoint,
		subscriptionKey: cfg.SubscriptionKey,
		client:          &http.Client{Timeout: timeout},
	}
}

// SearchRequest carries the parameters of a catalog search.
// BBox is ordered west, south, east, north in geographic
// coordinates.
type SearchRequest struct {
	Collections []string  `json:"collections"`
	BBox        []float64 `json:"bbox,omitempty"`
	Datetime    string    `json:"datetime,omitempty"`
	Limit       int       `json:"limit,omitempty"`
}

// Search POSTs the request to the catalog search endpoint and
// returns the matching items. Network and authentication
// failures surface to the caller; there is no retry.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*ItemCollection, error) {
	if len(req.BBox) != 0 && len(req.BBox) != 4 {
		return nil, fmt.Errorf("search bbox must contain 4 values, got %d", len(req.BBox))
	}

	body, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest("POST", c.endpoint+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq = httpReq.WithContext(ctx)
	httpReq.Header.Set("Content-Type", "application/json")
	if len(c.subscriptionKey) > 0 {
		httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("POST request to %s/search failed. Error: %v", c.endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Error reading response body from %s/search. Error: %v", c.endpoint, err)
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("catalog search at %s returned status %d: %s", c.endpoint, resp.StatusCode, truncate(respBody, 256))
	}

	var items ItemCollection
	err = json.Unmarshal(respBody, &items)
	if err != nil {
		return nil, fmt.Errorf("Problem parsing JSON response from %s/search. Error: %v", c.endpoint, err)
	}

	return &items, nil
}

// SignedAssetURL resolves the named asset of the item and signs
// its URL with the client subscription key when one is set.
func (c *Client) SignedAssetURL(item *Item, name string) (string, error) {
	rawURL, err := item.AssetURL(name)
	if err != nil {
		return "", err
	}
	return SignURL(rawURL, c.subscriptionKey)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
