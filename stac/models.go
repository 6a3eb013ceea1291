package stac

import (
	"encoding/json"
	"fmt"

	geo "github.com/nci/geometry"
)

// Asset describes one downloadable resource attached
// to a catalog item. Href may be a time-limited signed
// URL depending on the catalog and the subscription key
// used for the search.
type Asset struct {
	Href        string   `json:"href"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

type ItemProperties struct {
	Datetime      string `json:"datetime"`
	StartDatetime string `json:"start_datetime,omitempty"`
	EndDatetime   string `json:"end_datetime,omitempty"`
}

// Item is a single record returned by a catalog search.
// The geometry is kept raw; Footprint deserialises it on
// demand for the callers that need it.
type Item struct {
	Type       string           `json:"type"`
	ID         string           `json:"id"`
	Collection string           `json:"collection,omitempty"`
	BBox       []float64        `json:"bbox,omitempty"`
	Geometry   json.RawMessage  `json:"geometry,omitempty"`
	Properties ItemProperties   `json:"properties"`
	Assets     map[string]Asset `json:"assets"`
}

// ItemCollection is the GeoJSON FeatureCollection
// document a catalog search responds with.
type ItemCollection struct {
	Type     string  `json:"type"`
	Features []*Item `json:"features"`
	Context  *struct {
		Returned int `json:"returned"`
		Limit    int `json:"limit"`
		Matched  int `json:"matched"`
	} `json:"context,omitempty"`
}

// AssetURL returns the href of the named asset of the item.
func (item *Item) AssetURL(name string) (string, error) {
	asset, ok := item.Assets[name]
	if !ok {
		return "", fmt.Errorf("item %s: %w", item.ID, ErrAssetNotFound)
	}
	if len(asset.Href) == 0 {
		return "", fmt.Errorf("item %s: asset %s has an empty href", item.ID, name)
	}
	return asset.Href, nil
}

// Footprint deserialises the item geometry into a
// GeoJSON feature. Only Polygon and MultiPolygon
// footprints are accepted.
func (item *Item) Footprint() (*geo.Feature, error) {
	if len(item.Geometry) == 0 {
		return nil, fmt.Errorf("item %s has no geometry", item.ID)
	}

	featDoc, err := json.Marshal(map[string]json.RawMessage{
		"type":     json.RawMessage(`"Feature"`),
		"geometry": item.Geometry,
	})
	if err != nil {
		return nil, err
	}

	var feat geo.Feature
	err = json.Unmarshal(featDoc, &feat)
	if err != nil {
		return nil, fmt.Errorf("item %s: error parsing geometry: %v", item.ID, err)
	}

	switch feat.Geometry.(type) {
	case *geo.Polygon, *geo.MultiPolygon:
		return &feat, nil
	default:
		return nil, fmt.Errorf("item %s: footprint geometry not supported, only Polygon or MultiPolygon", item.ID)
	}
}

// First returns the first item of a search result or
// ErrNoItems when the search came back empty.
func (ic *ItemCollection) First() (*Item, error) {
	if len(ic.Features) == 0 {
		return nil, ErrNoItems
	}
	return ic.Features[0], nil
}
