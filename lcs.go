package main

/* lcs is a web server implementing a WMS style interface to
   serve land cover rasters registered in a STAC catalog. A
   GetMap request is answered by searching the catalog for the
   items intersecting the requested bounding box, reading the
   matching raster windows over HTTP range requests and
   rendering them through the colour table embedded in the
   rasters. Configuration of the server is specified in the
   config.json file where layers and colour scales can be
   defined. */

import (
	"crypto/md5"
	"encoding/hex"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/net/context"

	"github.com/CloudyKit/jet"
	reuseport "github.com/kavu/go_reuseport"
	"github.com/nci/gomemcache/memcache"

	"github.com/balintalfoldy/lcs/metrics"
	proc "github.com/balintalfoldy/lcs/processor"
	"github.com/balintalfoldy/lcs/stac"
	"github.com/balintalfoldy/lcs/utils"

	_ "net/http/pprof"
)

// Global variable to hold the values specified
// on the config.json document.
var configMap map[string]*utils.Config

var (
	port            = flag.Int("p", 8080, "Server listening port.")
	serverDataDir   = flag.String("data_dir", utils.DataDir, "Server data directory.")
	serverConfigDir = flag.String("conf_dir", utils.EtcDir, "Server config directory.")
	serverLogDir    = flag.String("log_dir", "", "Server log directory.")
	validateConfig  = flag.Bool("check_conf", false, "Validate server config files.")
	verbose         = flag.Bool("v", false, "Verbose mode for more server outputs.")
)

var reWMSMap = utils.CompileWMSRegexMap()

var (
	Error *log.Logger
	Info  *log.Logger
)

var metricsLogger metrics.Logger
var mc *memcache.Client
var legendView *jet.Set

// init initialises the Error logger, checks
// required files are in place and sets the Config struct.
// This is the first function to be called in main.
func init() {
	Error = log.New(os.Stderr, "LCS: ", log.Ldate|log.Ltime|log.Lshortfile)
	Info = log.New(os.Stdout, "LCS: ", log.Ldate|log.Ltime|log.Lshortfile)

	flag.Parse()

	utils.DataDir = *serverDataDir
	utils.EtcDir = *serverConfigDir

	filePaths := []string{
		utils.DataDir + "/templates/WMS_GetCapabilities.tpl",
		utils.DataDir + "/templates/WMS_DescribeLayer.tpl",
		utils.DataDir + "/templates/WMS_ServiceException.tpl",
		utils.DataDir + "/templates/legend.jet"}

	for _, filePath := range filePaths {
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			panic(err)
		}
	}

	confMap, err := utils.LoadAllConfigFiles(utils.EtcDir)
	if err != nil {
		Error.Printf("Error in loading config files: %v\n", err)
		panic(err)
	}

	if *validateConfig {
		os.Exit(0)
	}

	configMap = confMap
	utils.WatchConfig(Info, Error, &configMap)

	legendView = jet.NewSet(jet.SafeWriter(func(w io.Writer, b []byte) {
		w.Write(b)
	}), utils.DataDir+"/templates", "/")
}

func catalogClient(conf *utils.Config) *stac.Client {
	return stac.NewClient(stac.ClientConfig{
		Endpoint:        conf.ServiceConfig.StacEndpoint,
		SubscriptionKey: conf.ServiceConfig.SubscriptionKey,
		Timeout:         time.Duration(conf.ServiceConfig.TimeoutSecs) * time.Second,
	})
}

func serveWMS(ctx context.Context, params utils.WMSParams, conf *utils.Config, r *http.Request, w http.ResponseWriter, metricsCollector *metrics.MetricsCollector) {
	if params.Request == nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, "Malformed WMS, a Request field needs to be specified", 400)
		return
	}

	switch *params.Request {
	case "GetCapabilities":
		if params.Version != nil && !utils.CheckWMSVersion(*params.Version) {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, fmt.Sprintf("This server can only accept WMS requests compliant with version 1.1.1 and 1.3.0: %s", r.URL.RawQuery), 400)
			return
		}

		err := utils.ExecuteWriteTemplateFile(w, conf,
			utils.DataDir+"/templates/WMS_GetCapabilities.tpl")
		if err != nil {
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
		}

	case "DescribeLayer":
		if len(params.Layers) == 0 {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, "Request DescribeLayer should contain a layers parameter", 400)
			return
		}
		idx, err := utils.GetLayerIndex(conf, params.Layers[0])
		if err != nil {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, fmt.Sprintf("Malformed WMS DescribeLayer request: %v", err), 400)
			return
		}

		err = utils.ExecuteWriteTemplateFile(w, conf.Layers[idx],
			utils.DataDir+"/templates/WMS_DescribeLayer.tpl")
		if err != nil {
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
		}

	case "GetMap":
		serveWMSGetMap(ctx, params, conf, r, w, metricsCollector)

	case "GetLegendGraphic":
		serveWMSLegend(ctx, params, conf, r, w, metricsCollector)

	default:
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("%s not recognised.", *params.Request), 400)
	}
}

func serveWMSGetMap(ctx context.Context, params utils.WMSParams, conf *utils.Config, r *http.Request, w http.ResponseWriter, metricsCollector *metrics.MetricsCollector) {
	if params.Version != nil && !utils.CheckWMSVersion(*params.Version) {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("This server can only accept WMS requests compliant with version 1.1.1 and 1.3.0: %s", r.URL.RawQuery), 400)
		return
	}

	err := utils.CheckWMSParams(params)
	if err != nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("Malformed WMS GetMap request: %v", err), 400)
		return
	}

	if params.CRS != nil && strings.ToUpper(*params.CRS) != "EPSG:4326" {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, "This server only serves geographic coordinates (EPSG:4326)", 400)
		return
	}

	if len(params.Layers) == 0 {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, "Request GetMap should contain a layers parameter", 400)
		return
	}
	idx, err := utils.GetLayerIndex(conf, params.Layers[0])
	if err != nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("Malformed WMS GetMap request: %v", err), 400)
		return
	}
	layer := conf.Layers[idx]

	var cacheHash string
	if mc != nil {
		buff := md5.Sum([]byte(r.URL.RequestURI()))
		cacheHash = hex.EncodeToString(buff[:])
		if cached, ok := mc.Get(cacheHash); ok == nil {
			w.Header().Set("Content-Type", "image/png")
			w.Write(cached.Value)
			return
		}
	}

	greyScale := false
	if len(params.Styles) > 0 && params.Styles[0] == "grey" {
		greyScale = true
	}

	geoReq := &proc.GeoTileRequest{ConfigPayLoad: proc.ConfigPayLoad{
		Palette:     layer.Palette,
		ClassFilter: layer.ClassFilter,
		GreyScale:   greyScale,
		ZoomLimit:   layer.ZoomLimit,
	},
		Collection:       layer.Collection,
		AssetName:        layer.AssetName,
		CRS:              "EPSG:4326",
		BBox:             params.BBox,
		Height:           *params.Height,
		Width:            *params.Width,
		Band:             layer.Band,
		NoData:           layer.NoData,
		StartTime:        params.Time,
		MetricsCollector: metricsCollector,
	}

	timeout := time.Duration(conf.ServiceConfig.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = stac.DefaultTimeout
	}
	ctx, ctxCancel := context.WithTimeout(ctx, timeout)
	defer ctxCancel()

	errChan := make(chan error, 100)
	indexerStart := time.Now()

	tp := proc.InitTilePipeline(ctx, catalogClient(conf), conf.ServiceConfig.TileConcLimit, errChan)
	out := tp.ProcessPNG(geoReq, *verbose)

	select {
	case tileBytes := <-out:
		metricsCollector.Info.Reader.Duration = time.Since(indexerStart)
		if tileBytes == nil {
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, "Empty server response", 500)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		// Enable browser and intermediate caching
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write(tileBytes)

		if mc != nil {
			// don't care about errors; memcache may not necessarily retain this anyway
			mc.Set(&memcache.Item{Key: cacheHash, Value: tileBytes})
		}

	case err := <-errChan:
		Error.Printf("%s: pipeline error: %v", r.URL.RawQuery, err)
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)

	case <-ctx.Done():
		Error.Printf("%s: GetMap timed out: %v", r.URL.RawQuery, ctx.Err())
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, "WMS GetMap request timed out", 500)
	}
}

type legendRow struct {
	Value int
	Hex   string
	Label string
}

type legendContext struct {
	Title   string
	Classes []legendRow
}

// layerLegend resolves the colours and labels shown in the
// legend of a layer. Colours come from the configured palette
// when one exists, otherwise from the colour table embedded in
// the first catalog item of the layer collection.
func layerLegend(ctx context.Context, conf *utils.Config, layer *utils.Layer) (*legendContext, error) {
	if len(layer.LegendPath) == 0 {
		return nil, fmt.Errorf("layer %s has no legend configured", layer.Name)
	}
	legend, err := utils.LoadClassLegend(utils.EtcDir + "/" + layer.LegendPath)
	if err != nil {
		return nil, err
	}

	var table []color.RGBA
	if layer.Palette != nil {
		table, err = proc.GradientRGBAPalette(layer.Palette)
		if err != nil {
			return nil, err
		}
	} else {
		client := catalogClient(conf)
		items, err := client.Search(ctx, stac.SearchRequest{Collections: []string{layer.Collection}, Limit: 1})
		if err != nil {
			return nil, err
		}
		item, err := items.First()
		if err != nil {
			return nil, err
		}
		url, err := client.SignedAssetURL(item, layer.AssetName)
		if err != nil {
			return nil, err
		}
		table, err = proc.ReadColourTable(url, layer.Band)
		if err != nil {
			return nil, err
		}
	}

	title := legend.Title
	if len(title) == 0 {
		title = layer.Title
	}

	lc := &legendContext{Title: title}
	for _, class := range legend.Classes {
		c := proc.LookupClass(table, class.Value)
		lc.Classes = append(lc.Classes, legendRow{
			Value: class.Value,
			Hex:   fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B),
			Label: class.Label,
		})
	}
	return lc, nil
}

const legendSwatchSize = 24

func serveWMSLegend(ctx context.Context, params utils.WMSParams, conf *utils.Config, r *http.Request, w http.ResponseWriter, metricsCollector *metrics.MetricsCollector) {
	if len(params.Layers) == 0 {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, "Request GetLegendGraphic should contain a layers parameter", 400)
		return
	}
	idx, err := utils.GetLayerIndex(conf, params.Layers[0])
	if err != nil {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("Malformed WMS GetLegendGraphic request: %v", err), 400)
		return
	}

	legend, err := layerLegend(ctx, conf, &conf.Layers[idx])
	if err != nil {
		Error.Printf("%s: legend error: %v", r.URL.RawQuery, err)
		metricsCollector.Info.HTTPStatus = 500
		http.Error(w, err.Error(), 500)
		return
	}

	if params.Format != nil && *params.Format == "text/html" {
		template, err := legendView.GetTemplate("legend.jet")
		if err != nil {
			metricsCollector.Info.HTTPStatus = 500
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		vars := make(jet.VarMap)
		if err = template.Execute(w, vars, legend); err != nil {
			Error.Printf("%s: legend template error: %v", r.URL.RawQuery, err)
		}
		return
	}

	img := image.NewRGBA(image.Rect(0, 0, legendSwatchSize, legendSwatchSize*len(legend.Classes)))
	for i, row := range legend.Classes {
		var c color.RGBA
		fmt.Sscanf(row.Hex, "%02x%02x%02x", &c.R, &c.G, &c.B)
		c.A = 0xFF
		swatch := image.Rect(0, i*legendSwatchSize, legendSwatchSize, (i+1)*legendSwatchSize)
		draw.Draw(img, swatch, &image.Uniform{c}, image.ZP, draw.Src)
	}

	w.Header().Set("Content-Type", "image/png")
	err = png.Encode(w, img)
	if err != nil {
		Error.Printf("%s: error PNG encoding legend: %v", r.URL.RawQuery, err)
	}
}

func generalHandler(conf *utils.Config, w http.ResponseWriter, r *http.Request) {
	metricsCollector := metrics.NewMetricsCollector(metricsLogger)
	defer metricsCollector.Log()

	reqTime := time.Now()
	metricsCollector.Info.ReqTime = reqTime.Format(utils.ISOFormat)
	metricsCollector.Info.RemoteAddr = r.RemoteAddr
	metricsCollector.Info.URL.RawURL = r.URL.String()
	metricsCollector.Info.HTTPStatus = 200
	defer func() { metricsCollector.Info.ReqDuration = time.Since(reqTime) }()

	if *verbose {
		Info.Printf("%s\n", r.URL.String())
	}

	r.ParseForm()
	query := normaliseKeys(r.Form)

	if _, fOK := query["service"]; !fOK {
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("Not a OWS request. Request does not contain a 'service' parameter."), 400)
		return
	}

	switch query["service"][0] {
	case "WMS":
		params, err := utils.WMSParamsChecker(query, reWMSMap)
		if err != nil {
			metricsCollector.Info.HTTPStatus = 400
			http.Error(w, fmt.Sprintf("Wrong WMS parameters on URL: %s", err), 400)
			return
		}
		serveWMS(r.Context(), params, conf, r, w, metricsCollector)
	default:
		metricsCollector.Info.HTTPStatus = 400
		http.Error(w, fmt.Sprintf("Not a valid OWS request. URL %s does not contain a valid 'request' parameter.", r.URL.String()), 400)
	}
}

func normaliseKeys(params map[string][]string) map[string][]string {
	out := make(map[string][]string)
	for key, value := range params {
		out[strings.ToLower(key)] = value
	}
	return out
}

func main() {
	if len(*serverLogDir) > 0 {
		metricsLogger = metrics.NewFileLogger(*serverLogDir, 0, 0, *verbose)
	} else {
		metricsLogger = metrics.NewStdoutLogger()
	}

	for _, conf := range configMap {
		if len(conf.ServiceConfig.MemcacheAddress) > 0 {
			mc = memcache.New(conf.ServiceConfig.MemcacheAddress)
			break
		}
	}

	http.Handle("/", http.FileServer(http.Dir(utils.DataDir+"/static")))
	http.HandleFunc("/ows", func(w http.ResponseWriter, r *http.Request) {
		conf, ok := configMap["."]
		if !ok {
			http.Error(w, "Server has no root configuration", 500)
			return
		}
		generalHandler(conf, w, r)
	})

	listener, err := reuseport.Listen("tcp4", fmt.Sprintf(":%d", *port))
	if err != nil {
		Error.Fatalf("Error listening on port %d: %v", *port, err)
	}

	Info.Printf("LCS server listening on %d\n", *port)
	Error.Fatal(http.Serve(listener, nil))
}
