package processor

import (
	"fmt"
	"image/color"
	"log"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/airbusgeo/godal"
	"golang.org/x/net/context"

	"github.com/balintalfoldy/lcs/utils"
)

const SizeofUint16 = 2
const SizeofInt16 = 2
const SizeofFloat32 = 4

var gdalTypes = map[godal.DataType]string{
	godal.Byte:    "Byte",
	godal.UInt16:  "UInt16",
	godal.Int16:   "Int16",
	godal.Float32: "Float32",
}

var registerDriversOnce sync.Once

func registerDrivers() {
	registerDriversOnce.Do(func() {
		godal.RegisterAll()
	})
}

// TileReader reads the window of each granule that intersects
// the request bounding box. Remote rasters are accessed with
// HTTP range reads through the vsicurl driver; every dataset
// handle is released before the raster is handed downstream.
type TileReader struct {
	Context context.Context
	In      chan *GeoTileGranule
	Out     chan *FlexRaster
	Error   chan error
	Limiter *ConcLimiter
}

func NewTileReader(ctx context.Context, concLimit int, errChan chan error) *TileReader {
	return &TileReader{
		Context: ctx,
		In:      make(chan *GeoTileGranule, 100),
		Out:     make(chan *FlexRaster, 100),
		Error:   errChan,
		Limiter: NewConcLimiter(concLimit),
	}
}

func (tr *TileReader) Run(verbose bool) {
	if verbose {
		defer log.Printf("tile reader done")
	}
	defer close(tr.Out)

	for gran := range tr.In {
		if gran.URL == "NULL" {
			tr.Out <- &FlexRaster{ConfigPayLoad: gran.ConfigPayLoad, Data: make([]uint8, gran.Width*gran.Height), Height: gran.Height, Width: gran.Width, OffX: 0, OffY: 0, Type: "Byte", NoData: 0.0, TimeStamp: gran.TimeStamp}
			continue
		}

		tr.Limiter.Increase()
		go func(g *GeoTileGranule) {
			defer tr.Limiter.Decrease()
			r, err := readGranule(g)
			if err != nil {
				tr.Error <- fmt.Errorf("granule %s: %v", g.ItemID, err)
				return
			}
			if g.MetricsCollector != nil {
				atomic.AddInt64(&g.MetricsCollector.Info.Reader.NumGranules, 1)
				atomic.AddInt64(&g.MetricsCollector.Info.Reader.BytesRead, int64(len(r.Data)))
			}
			tr.Out <- r
		}(gran)
	}

	tr.Limiter.Wait()
}

// GranulePath maps an asset URL onto a GDAL dataset name.
// Remote URLs go through vsicurl so only the requested byte
// ranges are transferred.
func GranulePath(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return "/vsicurl/" + url
	}
	return url
}

// readGranule reads the granule window scaled onto the request
// canvas and computes where the window lands on that canvas.
func readGranule(gran *GeoTileGranule) (*FlexRaster, error) {
	ds, geot, win, err := openWindow(gran.URL, gran.BBox)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	destGeot := utils.BBox2Geot(gran.Width, gran.Height, gran.BBox)
	destWin, err := ComputeWindow(destGeot, gran.Width, gran.Height, WindowBBox(geot, win))
	if err != nil {
		return nil, err
	}

	raster, err := readBand(ds, gran.Band, win, destWin.Width, destWin.Height, gran.NoData)
	if err != nil {
		return nil, err
	}

	raster.ConfigPayLoad = gran.ConfigPayLoad
	raster.OffX = destWin.OffX
	raster.OffY = destWin.OffY
	raster.TimeStamp = gran.TimeStamp
	return raster, nil
}

// ReadWindow reads the window of a single raster at native
// resolution. This is the single shot path used by the fetch
// tool: one open, one windowed read, deterministic close.
func ReadWindow(url string, band int, bbox []float64, noData float64) (*FlexRaster, error) {
	ds, _, win, err := openWindow(url, bbox)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	return readBand(ds, band, win, win.Width, win.Height, noData)
}

// ReadColourTable opens a raster just to extract the indexed
// colour table of one band. No pixel data is transferred.
func ReadColourTable(url string, bandIdx int) ([]color.RGBA, error) {
	registerDrivers()

	ds, err := godal.Open(GranulePath(url))
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %v", url, err)
	}
	defer ds.Close()

	bands := ds.Bands()
	if bandIdx < 1 || bandIdx > len(bands) {
		return nil, fmt.Errorf("band %d out of range, dataset has %d bands", bandIdx, len(bands))
	}

	table := bandColourTable(bands[bandIdx-1])
	if table == nil {
		return nil, fmt.Errorf("dataset %s band %d carries no colour table", url, bandIdx)
	}
	return table, nil
}

func openWindow(url string, bbox []float64) (*godal.Dataset, []float64, Window, error) {
	registerDrivers()

	ds, err := godal.Open(GranulePath(url))
	if err != nil {
		return nil, nil, Window{}, fmt.Errorf("failed to open dataset %s: %v", url, err)
	}

	geot6, err := ds.GeoTransform()
	if err != nil {
		ds.Close()
		return nil, nil, Window{}, fmt.Errorf("dataset %s has no geotransform: %v", url, err)
	}
	geot := geot6[:]

	structure := ds.Structure()
	win, err := ComputeWindow(geot, structure.SizeX, structure.SizeY, bbox)
	if err != nil {
		ds.Close()
		return nil, nil, Window{}, err
	}

	return ds, geot, win, nil
}

func readBand(ds *godal.Dataset, bandIdx int, win Window, bufWidth, bufHeight int, noData float64) (*FlexRaster, error) {
	bands := ds.Bands()
	if bandIdx < 1 || bandIdx > len(bands) {
		return nil, fmt.Errorf("band %d out of range, dataset has %d bands", bandIdx, len(bands))
	}
	band := bands[bandIdx-1]

	dataType := band.Structure().DataType
	typeName, ok := gdalTypes[dataType]
	if !ok {
		return nil, fmt.Errorf("raster type %v not implemented", dataType)
	}

	if nd, hasNoData := band.NoData(); hasNoData {
		noData = nd
	}

	table := bandColourTable(band)

	size := bufWidth * bufHeight
	var data []uint8

	switch typeName {
	case "Byte":
		buf := make([]uint8, size)
		err := band.Read(win.OffX, win.OffY, buf, bufWidth, bufHeight, godal.Window(win.Width, win.Height))
		if err != nil {
			return nil, err
		}
		data = buf
	case "UInt16":
		buf := make([]uint16, size)
		err := band.Read(win.OffX, win.OffY, buf, bufWidth, bufHeight, godal.Window(win.Width, win.Height))
		if err != nil {
			return nil, err
		}
		headr := *(*reflect.SliceHeader)(unsafe.Pointer(&buf))
		headr.Len *= SizeofUint16
		headr.Cap *= SizeofUint16
		data = *(*[]uint8)(unsafe.Pointer(&headr))
	case "Int16":
		buf := make([]int16, size)
		err := band.Read(win.OffX, win.OffY, buf, bufWidth, bufHeight, godal.Window(win.Width, win.Height))
		if err != nil {
			return nil, err
		}
		headr := *(*reflect.SliceHeader)(unsafe.Pointer(&buf))
		headr.Len *= SizeofInt16
		headr.Cap *= SizeofInt16
		data = *(*[]uint8)(unsafe.Pointer(&headr))
	case "Float32":
		buf := make([]float32, size)
		err := band.Read(win.OffX, win.OffY, buf, bufWidth, bufHeight, godal.Window(win.Width, win.Height))
		if err != nil {
			return nil, err
		}
		headr := *(*reflect.SliceHeader)(unsafe.Pointer(&buf))
		headr.Len *= SizeofFloat32
		headr.Cap *= SizeofFloat32
		data = *(*[]uint8)(unsafe.Pointer(&headr))
	}

	return &FlexRaster{Data: data, Height: bufHeight, Width: bufWidth, Type: typeName, NoData: noData, ColourTable: table}, nil
}

// bandColourTable extracts the indexed colour table embedded
// in the band. The table length is whatever the raster declares;
// nothing assumes 256 entries.
func bandColourTable(band godal.Band) []color.RGBA {
	ct := band.ColorTable()
	if len(ct.Entries) == 0 {
		return nil
	}

	table := make([]color.RGBA, len(ct.Entries))
	for i, entry := range ct.Entries {
		table[i] = color.RGBA{uint8(entry[0]), uint8(entry[1]), uint8(entry[2]), uint8(entry[3])}
	}
	return table
}
