package utils

import (
	"encoding/json"
	"fmt"
	"image/color"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

var EtcDir = "."
var DataDir = "."

// string used to format Go ISO times
const ISOFormat = "2006-01-02T15:04:05.000Z"

const DefaultAssetName = "map"
const DefaultTileConcLimit = 16

// ServiceConfig holds the addresses of the external
// collaborators of the tile server: the STAC catalog
// used for searches and the optional memcache cluster
// used to cache rendered responses.
type ServiceConfig struct {
	OWSHostname     string `json:"ows_hostname"`
	StacEndpoint    string `json:"stac_endpoint"`
	SubscriptionKey string `json:"subscription_key"`
	MemcacheAddress string `json:"memcache_address"`
	TileConcLimit   int    `json:"tile_conc_limit"`
	TimeoutSecs     int    `json:"timeout_secs"`
}

type Palette struct {
	Interpolate bool         `json:"interpolate"`
	Colours     []color.RGBA `json:"colours"`
}

// Layer contains all the details a land-cover layer needs
// to be published and rendered. Collection and AssetName
// address the raster within the STAC catalog; the colour
// table embedded in the raster itself drives rendering
// unless a Palette override is configured.
type Layer struct {
	OWSHostname string `json:"ows_hostname"`
	NameSpace   string
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Abstract    string   `json:"abstract"`
	Collection  string   `json:"collection"`
	AssetName   string   `json:"asset_name"`
	Band        int      `json:"band"`
	NoData      float64  `json:"nodata"`
	ClassFilter string   `json:"class_filter"`
	LegendPath  string   `json:"legend_path"`
	Palette     *Palette `json:"palette"`
	ZoomLimit   float64  `json:"zoom_limit"`
}

// Config is the struct representing the configuration
// of the tile server. It contains the catalog service
// information as well as the list of layers that can
// be served.
type Config struct {
	ServiceConfig ServiceConfig `json:"service_config"`
	Layers        []Layer       `json:"layers"`
}

// GetLayerIndex returns the index of the layer
// registered under the requested name.
func GetLayerIndex(config *Config, name string) (int, error) {
	for i := range config.Layers {
		if config.Layers[i].Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("layer %s not found in config file", name)
}

// LoadConfigFile marshalls the config.json document returning an
// instance of a Config variable containing all the values
func (config *Config) LoadConfigFile(configFile string) error {
	*config = Config{}
	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	err = json.Unmarshal(cfg, config)
	if err != nil {
		return fmt.Errorf("Error at JSON parsing config document: %s. Error: %v", configFile, err)
	}

	if config.ServiceConfig.TileConcLimit <= 0 {
		config.ServiceConfig.TileConcLimit = DefaultTileConcLimit
	}

	for i, layer := range config.Layers {
		config.Layers[i].OWSHostname = config.ServiceConfig.OWSHostname

		if len(layer.AssetName) == 0 {
			config.Layers[i].AssetName = DefaultAssetName
		}
		if layer.Band <= 0 {
			config.Layers[i].Band = 1
		}

		if layer.Palette != nil && layer.Palette.Colours != nil && len(layer.Palette.Colours) < 2 {
			return fmt.Errorf("The colour palette must contain at least 2 colours.")
		}
	}
	return nil
}

func LoadAllConfigFiles(rootDir string) (map[string]*Config, error) {
	configMap := make(map[string]*Config)
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && info.Name() == "config.json" {
			relPath, _ := filepath.Rel(rootDir, filepath.Dir(path))
			log.Printf("Loading config file: %s under namespace: %s\n", path, relPath)

			config := &Config{}
			e := config.LoadConfigFile(path)
			if e != nil {
				return e
			}

			configMap[relPath] = config

			for i := range config.Layers {
				ns := relPath
				if relPath == "." {
					ns = ""
				}
				config.Layers[i].NameSpace = ns
			}
		}
		return nil
	})

	if err == nil && len(configMap) == 0 {
		err = fmt.Errorf("No config file found")
	}

	return configMap, err
}

func WatchConfig(infoLog, errLog *log.Logger, configMap *map[string]*Config) {
	// Catch SIGHUP to automatically reload config
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-sighup:
				infoLog.Println("Caught SIGHUP, reloading config...")
				confMap, err := LoadAllConfigFiles(EtcDir)
				if err != nil {
					errLog.Printf("Error in loading config files: %v\n", err)
					return
				}

				for k := range *configMap {
					delete(*configMap, k)
				}

				for k := range confMap {
					(*configMap)[k] = confMap[k]
				}
			}
		}
	}()
}
