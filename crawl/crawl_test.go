package main

import (
	"testing"

	"github.com/balintalfoldy/lcs/stac"
)

func TestParsePatternExpression(t *testing.T) {
	expr, err := parsePatternExpression("")
	if expr != nil || err != nil {
		t.Errorf("empty pattern should compile to nothing, got %v, %v", expr, err)
		return
	}

	_, err = parsePatternExpression("id =~ '2021' && asset =~ 'map'")
	if err != nil {
		t.Errorf("failed to parse pattern: %v", err)
		return
	}

	_, err = parsePatternExpression("collection == 'esa-worldcover'")
	if err == nil {
		t.Errorf("expected error for unsupported variable")
	}
}

func TestMatchItem(t *testing.T) {
	item := &stac.Item{
		ID: "ESA_WorldCover_10m_2021_v200_N00E033",
		Properties: stac.ItemProperties{
			Datetime: "2021-01-01T00:00:00Z",
		},
		Assets: map[string]stac.Asset{
			"map": {Href: "https://example.com/N00E033_Map.tif"},
		},
	}

	expr, err := parsePatternExpression("id =~ '2021' && asset =~ 'map'")
	if err != nil {
		t.Errorf("failed to parse pattern: %v", err)
		return
	}

	match, err := MatchItem(expr, item)
	if err != nil {
		t.Errorf("failed to match item: %v", err)
		return
	}
	if !match {
		t.Errorf("item should match pattern")
		return
	}

	expr, _ = parsePatternExpression("id =~ '2020'")
	match, err = MatchItem(expr, item)
	if err != nil {
		t.Errorf("failed to match item: %v", err)
		return
	}
	if match {
		t.Errorf("item should not match pattern")
		return
	}

	// no pattern matches everything
	match, err = MatchItem(nil, item)
	if err != nil || !match {
		t.Errorf("nil pattern should match every item")
	}
}
