package processor

import (
	"bytes"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/net/context"

	"github.com/balintalfoldy/lcs/stac"
	"github.com/balintalfoldy/lcs/utils"
)

// The empty search path runs the whole pipeline without any
// raster access: indexer emits the empty granule, the reader
// turns it into a zero raster and the merger produces a canvas
// of the requested size.
func TestTilePipelineEmptySearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type": "FeatureCollection", "features": []}`)
	}))
	defer ts.Close()

	client := stac.NewClient(stac.ClientConfig{Endpoint: ts.URL})
	errChan := make(chan error, 100)
	tp := InitTilePipeline(context.Background(), client, 2, errChan)

	geoReq := testTileRequest()
	out := tp.Process(geoReq, false)

	select {
	case canvas := <-out:
		if canvas == nil {
			t.Errorf("pipeline emitted no canvas")
			return
		}
		if canvas.Width != geoReq.Width || canvas.Height != geoReq.Height {
			t.Errorf("unexpected canvas size: expected %dx%d, actual %dx%d",
				geoReq.Width, geoReq.Height, canvas.Width, canvas.Height)
			return
		}
		if canvas.Type != "Byte" || len(canvas.Data) != geoReq.Width*geoReq.Height {
			t.Errorf("unexpected canvas payload: type %s, %d bytes", canvas.Type, len(canvas.Data))
		}
	case <-time.After(10 * time.Second):
		t.Errorf("pipeline timed out")
	}
}

func TestTilePipelineEmptySearchPNG(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type": "FeatureCollection", "features": []}`)
	}))
	defer ts.Close()

	client := stac.NewClient(stac.ClientConfig{Endpoint: ts.URL})
	errChan := make(chan error, 100)
	tp := InitTilePipeline(context.Background(), client, 2, errChan)

	geoReq := testTileRequest()
	out := tp.ProcessPNG(geoReq, false)

	select {
	case tileBytes := <-out:
		if tileBytes == nil {
			t.Errorf("pipeline emitted no tile")
			return
		}
		img, err := png.Decode(bytes.NewReader(tileBytes))
		if err != nil {
			t.Errorf("failed to decode tile: %v", err)
			return
		}
		bounds := img.Bounds()
		if bounds.Dx() != geoReq.Width || bounds.Dy() != geoReq.Height {
			t.Errorf("unexpected tile size: %dx%d", bounds.Dx(), bounds.Dy())
			return
		}
		_, _, _, a := img.At(0, 0).RGBA()
		if a != 0 {
			t.Errorf("no-data tile is not transparent: alpha %v", a)
			return
		}

		// the error channel stays silent so a caller selecting
		// between tile and error always gets the tile
		select {
		case err := <-errChan:
			t.Errorf("empty search leaked a pipeline error: %v", err)
		default:
		}
	case <-time.After(10 * time.Second):
		t.Errorf("pipeline timed out")
	}
}

// For a granule fully covering the request bounding box the
// destination window spans exactly the request canvas. This is
// the placement arithmetic the reader runs for every granule.
func TestGranuleCanvasPlacement(t *testing.T) {
	bbox := []float64{33.984, 0.788, 34.902, 1.533}
	width, height := 512, 512

	// source raster covers [33,0,36,3] at 10800x10800
	srcGeot := []float64{33.0, 3.0 / 10800.0, 0, 3.0, 0, -3.0 / 10800.0}
	srcWin, err := ComputeWindow(srcGeot, 10800, 10800, bbox)
	if err != nil {
		t.Errorf("failed to compute source window: %v", err)
		return
	}
	if srcWin.Width <= 0 || srcWin.Height <= 0 {
		t.Errorf("degenerate source window: %v", srcWin)
		return
	}

	destGeot := utils.BBox2Geot(width, height, bbox)
	destWin, err := ComputeWindow(destGeot, width, height, WindowBBox(srcGeot, srcWin))
	if err != nil {
		t.Errorf("failed to compute destination window: %v", err)
		return
	}

	expected := Window{OffX: 0, OffY: 0, Width: width, Height: height}
	if destWin != expected {
		t.Errorf("unexpected destination window: expected %v, actual %v", expected, destWin)
	}
}
