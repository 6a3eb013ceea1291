package processor

import (
	"image/color"
	"time"

	"github.com/balintalfoldy/lcs/metrics"
	"github.com/balintalfoldy/lcs/utils"
)

type ConfigPayLoad struct {
	Palette     *utils.Palette
	ClassFilter string
	GreyScale   bool
	ZoomLimit   float64
}

// GeoTileRequest addresses one rendered tile: a collection
// and asset in the catalog, a geographic bounding box and
// the output size in pixels.
type GeoTileRequest struct {
	ConfigPayLoad
	Collection       string
	AssetName        string
	CRS              string
	BBox             []float64
	Height, Width    int
	Band             int
	NoData           float64
	StartTime        *time.Time
	EndTime          *time.Time
	MetricsCollector *metrics.MetricsCollector
}

// GeoTileGranule is one raster resource that intersects a
// tile request. URL resolves to the asset, already signed.
type GeoTileGranule struct {
	ConfigPayLoad
	URL              string
	ItemID           string
	CRS              string
	BBox             []float64
	Height, Width    int
	Band             int
	NoData           float64
	TimeStamp        time.Time
	MetricsCollector *metrics.MetricsCollector
}

// FlexRaster carries the pixels read from one granule window
// placed on the request canvas, along with the colour table
// embedded in the source raster, when there is one.
type FlexRaster struct {
	ConfigPayLoad
	Data          []byte
	Height, Width int
	OffX, OffY    int
	Type          string
	NoData        float64
	ColourTable   []color.RGBA
	TimeStamp     time.Time
}

