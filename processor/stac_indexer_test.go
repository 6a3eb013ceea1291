package processor

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/context"

	"github.com/balintalfoldy/lcs/metrics"
	"github.com/balintalfoldy/lcs/stac"
	"github.com/balintalfoldy/lcs/utils"
)

const searchResponse = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"id": "ESA_WorldCover_10m_2021_v200_N00E033",
			"collection": "esa-worldcover",
			"bbox": [33.0, 0.0, 36.0, 3.0],
			"properties": {"datetime": "2021-01-01T00:00:00Z"},
			"assets": {"map": {"href": "https://example.com/N00E033_Map.tif"}}
		},
		{
			"type": "Feature",
			"id": "ESA_WorldCover_10m_2021_v200_N00E030",
			"collection": "esa-worldcover",
			"bbox": [30.0, 0.0, 33.0, 3.0],
			"properties": {"datetime": "2021-01-01T00:00:00Z"},
			"assets": {"map": {"href": "https://example.com/N00E030_Map.tif"}}
		}
	]
}`

func testTileRequest() *GeoTileRequest {
	return &GeoTileRequest{
		Collection: "esa-worldcover",
		AssetName:  "map",
		CRS:        "EPSG:4326",
		BBox:       []float64{33.984, 0.788, 34.902, 1.533},
		Height:     512,
		Width:      512,
		Band:       1,
	}
}

func TestStacIndexer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != "POST" {
			http.Error(w, "not found", 404)
			return
		}
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			http.Error(w, "missing subscription key", 401)
			return
		}
		fmt.Fprint(w, searchResponse)
	}))
	defer ts.Close()

	client := stac.NewClient(stac.ClientConfig{Endpoint: ts.URL, SubscriptionKey: "test-key"})
	errChan := make(chan error, 100)
	indexer := NewStacIndexer(context.Background(), client, errChan)

	geoReq := testTileRequest()
	geoReq.MetricsCollector = metrics.NewMetricsCollector(nil)

	indexer.In <- geoReq
	close(indexer.In)
	indexer.Run(false)

	var granules []*GeoTileGranule
	for gran := range indexer.Out {
		granules = append(granules, gran)
	}

	if len(granules) != 2 {
		t.Errorf("unexpected granule count: expected 2, actual %d", len(granules))
		return
	}

	for _, gran := range granules {
		if !strings.Contains(gran.URL, "subscription-key=test-key") {
			t.Errorf("granule URL is not signed: %s", gran.URL)
			return
		}
		if gran.TimeStamp.IsZero() {
			t.Errorf("granule %s has no timestamp", gran.ItemID)
			return
		}
	}

	expectedTime := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	if !granules[0].TimeStamp.Equal(expectedTime) {
		t.Errorf("unexpected granule timestamp: expected %v, actual %v", expectedTime, granules[0].TimeStamp)
		return
	}

	info := geoReq.MetricsCollector.Info.Indexer
	if info.NumItems != 2 || info.NumGranules != 2 {
		t.Errorf("unexpected indexer metrics: items %d, granules %d", info.NumItems, info.NumGranules)
		return
	}

	select {
	case err := <-errChan:
		t.Errorf("unexpected indexer error: %v", err)
	default:
	}
}

func TestStacIndexerNoItems(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type": "FeatureCollection", "features": []}`)
	}))
	defer ts.Close()

	client := stac.NewClient(stac.ClientConfig{Endpoint: ts.URL})
	errChan := make(chan error, 100)
	indexer := NewStacIndexer(context.Background(), client, errChan)

	indexer.In <- testTileRequest()
	close(indexer.In)
	indexer.Run(false)

	// an empty search yields the empty granule so the encoder
	// serves a transparent tile
	gran := <-indexer.Out
	if gran == nil {
		t.Errorf("expected an empty granule for an empty search")
		return
	}
	if gran.URL != "NULL" || gran.ItemID != utils.EmptyTileNS {
		t.Errorf("unexpected empty granule: URL %s, ItemID %s", gran.URL, gran.ItemID)
		return
	}

	// nothing goes on the error channel, otherwise a map server
	// waiting on both channels would answer 500 instead of the
	// transparent tile
	select {
	case err := <-errChan:
		t.Errorf("empty search must not report a pipeline error, got: %v", err)
	default:
	}
}

func TestStacIndexerZoomLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("zoom limited request should not search the catalog")
	}))
	defer ts.Close()

	client := stac.NewClient(stac.ClientConfig{Endpoint: ts.URL})
	errChan := make(chan error, 100)
	indexer := NewStacIndexer(context.Background(), client, errChan)

	geoReq := testTileRequest()
	geoReq.ZoomLimit = 0.0001
	geoReq.BBox = []float64{0, 0, 180, 90}
	geoReq.Width = 512

	indexer.In <- geoReq
	close(indexer.In)
	indexer.Run(false)

	gran := <-indexer.Out
	if gran == nil || gran.URL != "NULL" {
		t.Errorf("expected an empty granule past the zoom limit")
	}
}
