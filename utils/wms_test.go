package utils

import (
	"testing"
)

func TestWMSParamsChecker(t *testing.T) {
	reWMSMap := CompileWMSRegexMap()

	query := map[string][]string{
		"service": {"WMS"},
		"version": {"1.3.0"},
		"request": {"GetMap"},
		"crs":     {"EPSG:4326"},
		"bbox":    {"33.984,0.788,34.902,1.533"},
		"width":   {"512"},
		"height":  {"512"},
		"layers":  {"landcover"},
		"styles":  {"grey"},
		"format":  {"image/png"},
	}

	params, err := WMSParamsChecker(query, reWMSMap)
	if err != nil {
		t.Errorf("failed to parse WMS params: %v", err)
		return
	}

	if params.Request == nil || *params.Request != "GetMap" {
		t.Errorf("failed to parse request parameter")
		return
	}
	if len(params.BBox) != 4 || params.BBox[0] != 33.984 || params.BBox[3] != 1.533 {
		t.Errorf("failed to parse bbox parameter: %v", params.BBox)
		return
	}
	if params.Width == nil || *params.Width != 512 {
		t.Errorf("failed to parse width parameter")
		return
	}
	if len(params.Styles) != 1 || params.Styles[0] != "grey" {
		t.Errorf("failed to parse styles parameter: %v", params.Styles)
		return
	}

	if err = CheckWMSParams(params); err != nil {
		t.Errorf("valid GetMap params failed validation: %v", err)
	}
}

func TestWMSParamsCheckerSRSAlias(t *testing.T) {
	reWMSMap := CompileWMSRegexMap()

	query := map[string][]string{
		"service": {"WMS"},
		"request": {"GetMap"},
		"srs":     {"epsg:4326"},
	}

	params, err := WMSParamsChecker(query, reWMSMap)
	if err != nil {
		t.Errorf("failed to parse WMS params: %v", err)
		return
	}
	if params.CRS == nil || *params.CRS != "EPSG:4326" {
		t.Errorf("srs parameter was not normalised to crs")
	}
}

func TestCheckWMSParams(t *testing.T) {
	request := "GetMap"
	width := 512
	height := 512

	params := WMSParams{Request: &request, Width: &width, Height: &height,
		BBox: []float64{34.902, 0.788, 33.984, 1.533}}
	if err := CheckWMSParams(params); err == nil {
		t.Errorf("expected error for an inverted bounding box")
		return
	}

	params.BBox = []float64{33.984, 0.788, 34.902, 1.533}
	zero := 0
	params.Width = &zero
	if err := CheckWMSParams(params); err == nil {
		t.Errorf("expected error for a zero width")
		return
	}

	params.Width = &width
	params.BBox = []float64{33.984, 0.788}
	if err := CheckWMSParams(params); err == nil {
		t.Errorf("expected error for a short bbox")
	}
}

func TestCheckWMSVersion(t *testing.T) {
	if !CheckWMSVersion("1.3.0") || !CheckWMSVersion("1.1.1") {
		t.Errorf("supported versions rejected")
		return
	}
	if CheckWMSVersion("1.0.0") {
		t.Errorf("unsupported version accepted")
	}
}

func TestBBox2Geot(t *testing.T) {
	geot := BBox2Geot(512, 512, []float64{33.984, 0.788, 34.902, 1.533})

	if geot[0] != 33.984 || geot[3] != 1.533 {
		t.Errorf("unexpected geotransform origin: %v", geot)
		return
	}
	if geot[1] <= 0 || geot[5] >= 0 {
		t.Errorf("unexpected geotransform resolution signs: %v", geot)
	}
}
