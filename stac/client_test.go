package stac

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/net/context"
)

const itemDoc = `{
	"type": "Feature",
	"id": "ESA_WorldCover_10m_2021_v200_N00E033",
	"collection": "esa-worldcover",
	"bbox": [33.0, 0.0, 36.0, 3.0],
	"geometry": {"type": "Polygon", "coordinates": [[[33,0],[36,0],[36,3],[33,3],[33,0]]]},
	"properties": {"datetime": "2021-01-01T00:00:00Z"},
	"assets": {"map": {"href": "https://example.com/N00E033_Map.tif", "title": "Land Cover Classes"}}
}`

func TestSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != "POST" {
			http.Error(w, "not found", 404)
			return
		}
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			http.Error(w, "missing subscription key", 401)
			return
		}

		body, _ := ioutil.ReadAll(r.Body)
		var req SearchRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if len(req.Collections) != 1 || req.Collections[0] != "esa-worldcover" {
			http.Error(w, "wrong collection", 400)
			return
		}
		if len(req.BBox) != 4 {
			http.Error(w, "wrong bbox", 400)
			return
		}

		fmt.Fprintf(w, `{"type": "FeatureCollection", "features": [%s]}`, itemDoc)
	}))
	defer ts.Close()

	client := NewClient(ClientConfig{Endpoint: ts.URL, SubscriptionKey: "test-key"})
	items, err := client.Search(context.Background(), SearchRequest{
		Collections: []string{"esa-worldcover"},
		BBox:        []float64{33.984, 0.788, 34.902, 1.533},
	})
	if err != nil {
		t.Errorf("search failed: %v", err)
		return
	}

	item, err := items.First()
	if err != nil {
		t.Errorf("failed to get first item: %v", err)
		return
	}
	if item.ID != "ESA_WorldCover_10m_2021_v200_N00E033" {
		t.Errorf("unexpected item id: %s", item.ID)
	}
}

func TestSearchLiveCatalog(t *testing.T) {
	endpoint := "https://planetarycomputer.microsoft.com/api/stac/v1"
	_, err := http.Get(endpoint)
	if err != nil {
		t.Skip("Catalog endpoint is unavailable. Skipping tests that require network access")
		return
	}

	client := NewClient(ClientConfig{Endpoint: endpoint})
	items, err := client.Search(context.Background(), SearchRequest{
		Collections: []string{"esa-worldcover"},
		BBox:        []float64{33.984, 0.788, 34.902, 1.533},
		Limit:       1,
	})
	if err != nil {
		t.Errorf("live search failed: %v", err)
		return
	}

	item, err := items.First()
	if err != nil {
		t.Errorf("live search returned no items: %v", err)
		return
	}
	if _, err := item.AssetURL("map"); err != nil {
		t.Errorf("live item has no map asset: %v", err)
	}
}

func TestSearchBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid subscription key", 401)
	}))
	defer ts.Close()

	client := NewClient(ClientConfig{Endpoint: ts.URL})
	_, err := client.Search(context.Background(), SearchRequest{Collections: []string{"esa-worldcover"}})
	if err == nil {
		t.Errorf("expected error for a 401 response")
	}
}

func TestSearchBadBBox(t *testing.T) {
	client := NewClient(ClientConfig{Endpoint: "http://localhost"})
	_, err := client.Search(context.Background(), SearchRequest{Collections: []string{"esa-worldcover"}, BBox: []float64{1, 2}})
	if err == nil {
		t.Errorf("expected error for a 2 value bbox")
	}
}

func TestAssetURL(t *testing.T) {
	item := &Item{}
	if err := json.Unmarshal([]byte(itemDoc), item); err != nil {
		t.Errorf("failed to parse item document: %v", err)
		return
	}

	url, err := item.AssetURL("map")
	if err != nil {
		t.Errorf("failed to resolve asset url: %v", err)
		return
	}
	if url != "https://example.com/N00E033_Map.tif" {
		t.Errorf("unexpected asset url: %s", url)
		return
	}

	_, err = item.AssetURL("thumbnail")
	if !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("expected ErrAssetNotFound for a missing asset, got: %v", err)
	}
}

func TestFirstNoItems(t *testing.T) {
	items := &ItemCollection{Type: "FeatureCollection"}
	_, err := items.First()
	if !errors.Is(err, ErrNoItems) {
		t.Errorf("expected ErrNoItems for an empty collection, got: %v", err)
	}
}

func TestFootprint(t *testing.T) {
	item := &Item{}
	if err := json.Unmarshal([]byte(itemDoc), item); err != nil {
		t.Errorf("failed to parse item document: %v", err)
		return
	}

	feat, err := item.Footprint()
	if err != nil {
		t.Errorf("failed to parse footprint: %v", err)
		return
	}
	if feat == nil {
		t.Errorf("expected a footprint feature")
		return
	}

	point := &Item{ID: "pt", Geometry: json.RawMessage(`{"type": "Point", "coordinates": [33, 0]}`)}
	_, err = point.Footprint()
	if err == nil {
		t.Errorf("expected error for a point footprint")
	}
}

func TestSignURL(t *testing.T) {
	signed, err := SignURL("https://example.com/N00E033_Map.tif", "test-key")
	if err != nil {
		t.Errorf("failed to sign url: %v", err)
		return
	}
	if signed != "https://example.com/N00E033_Map.tif?subscription-key=test-key" {
		t.Errorf("unexpected signed url: %s", signed)
		return
	}

	unsigned, err := UnsignedURL(signed)
	if err != nil {
		t.Errorf("failed to unsign url: %v", err)
		return
	}
	if unsigned != "https://example.com/N00E033_Map.tif" {
		t.Errorf("unexpected unsigned url: %s", unsigned)
		return
	}

	// an empty key leaves the URL untouched
	same, err := SignURL("https://example.com/N00E033_Map.tif", "")
	if err != nil || same != "https://example.com/N00E033_Map.tif" {
		t.Errorf("empty key should leave the url untouched: %s, %v", same, err)
	}
}

func TestSignedAssetURL(t *testing.T) {
	item := &Item{}
	if err := json.Unmarshal([]byte(itemDoc), item); err != nil {
		t.Errorf("failed to parse item document: %v", err)
		return
	}

	client := NewClient(ClientConfig{Endpoint: "http://localhost", SubscriptionKey: "test-key"})
	signed, err := client.SignedAssetURL(item, "map")
	if err != nil {
		t.Errorf("failed to sign asset url: %v", err)
		return
	}

	unsigned, err := UnsignedURL(signed)
	if err != nil {
		t.Errorf("failed to unsign asset url: %v", err)
		return
	}
	raw, _ := item.AssetURL("map")
	if unsigned != raw {
		t.Errorf("signed url does not resolve to the raw asset url: %s vs %s", unsigned, raw)
	}
}
