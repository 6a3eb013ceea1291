package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// WMSParams contains the serialised version
// of the parameters contained in a WMS request.
type WMSParams struct {
	Service *string    `json:"service,omitempty"`
	Request *string    `json:"request,omitempty"`
	CRS     *string    `json:"crs,omitempty"`
	BBox    []float64  `json:"bbox,omitempty"`
	Format  *string    `json:"format,omitempty"`
	Height  *int       `json:"height,omitempty"`
	Width   *int       `json:"width,omitempty"`
	Time    *time.Time `json:"time,omitempty"`
	Layers  []string   `json:"layers,omitempty"`
	Styles  []string   `json:"styles,omitempty"`
	Version *string    `json:"version,omitempty"`
}

// WMSRegexpMap maps WMS request parameters to
// regular expressions for doing validation
// when parsing.
// --- These regexp do not avoid every case of
// --- invalid code but filter most of the malformed
// --- cases. Error free JSON deserialisation into types
// --- also validates correct values.
var WMSRegexpMap = map[string]string{"service": `^WMS$`,
	"request": `^GetCapabilities$|^DescribeLayer$|^GetMap$|^GetLegendGraphic$`,
	"crs":     `^(?i)(?:[A-Z]+):(?:[0-9]+)$`,
	"bbox":    `^[-+]?[0-9]*\.?[0-9]*([eE][-+]?[0-9]+)?(,[-+]?[0-9]*\.?[0-9]*([eE][-+]?[0-9]+)?){3}$`,
	"width":   `^[0-9]+$`,
	"height":  `^[0-9]+$`,
	"time":    `^\d{4}-(?:1[0-2]|0[1-9])-(?:3[01]|0[1-9]|[12][0-9])T[0-2]\d:[0-5]\d:[0-5]\d\.\d+Z$`}

// BBox2Geot return the geotransform from the
// parameters received in a WMS GetMap request
func BBox2Geot(width, height int, bbox []float64) []float64 {
	return []float64{bbox[0], (bbox[2] - bbox[0]) / float64(width), 0, bbox[3], 0, (bbox[1] - bbox[3]) / float64(height)}
}

func CompileWMSRegexMap() map[string]*regexp.Regexp {
	REMap := make(map[string]*regexp.Regexp)
	for key, re := range WMSRegexpMap {
		REMap[key] = regexp.MustCompile(re)
	}

	return REMap
}

func CheckWMSVersion(version string) bool {
	return version == "1.3.0" || version == "1.1.1"
}

// WMSParamsChecker checks and marshals the content
// of the parameters of a WMS request into a
// WMSParams struct.
func WMSParamsChecker(params map[string][]string, compREMap map[string]*regexp.Regexp) (WMSParams, error) {

	jsonFields := []string{}

	if service, serviceOK := params["service"]; serviceOK {
		if compREMap["service"].MatchString(service[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"service":"%s"`, service[0]))
		}
	}

	if version, versionOK := params["version"]; versionOK {
		jsonFields = append(jsonFields, fmt.Sprintf(`"version":"%s"`, version[0]))
	}

	if request, requestOK := params["request"]; requestOK {
		jsonFields = append(jsonFields, fmt.Sprintf(`"request":"%s"`, request[0]))
	}

	// WMS specifies that coordinate reference systems can be designed by either: ["srs", "crs"]
	if value, srsOK := params["srs"]; srsOK {
		params["crs"] = value
		delete(params, "srs")
	}

	if crs, crsOK := params["crs"]; crsOK {
		if compREMap["crs"].MatchString(crs[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"crs":"%s"`, strings.ToUpper(crs[0])))
		}
	}

	if bbox, bboxOK := params["bbox"]; bboxOK {
		if compREMap["bbox"].MatchString(bbox[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"bbox":[%s]`, bbox[0]))
		}
	}

	if width, widthOK := params["width"]; widthOK {
		if compREMap["width"].MatchString(width[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"width":%s`, width[0]))
		}
	}

	if height, heightOK := params["height"]; heightOK {
		if compREMap["height"].MatchString(height[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"height":%s`, height[0]))
		}
	}

	if timeRaw, timeOK := params["time"]; timeOK {
		if compREMap["time"].MatchString(timeRaw[0]) {
			jsonFields = append(jsonFields, fmt.Sprintf(`"time":"%s"`, timeRaw[0]))
		}
	}

	if layers, layersOK := params["layers"]; layersOK {
		jsonFields = append(jsonFields, fmt.Sprintf(`"layers":["%s"]`, strings.Join(strings.Split(layers[0], ","), `","`)))
	}

	if styles, stylesOK := params["styles"]; stylesOK {
		if len(strings.TrimSpace(styles[0])) > 0 {
			jsonFields = append(jsonFields, fmt.Sprintf(`"styles":["%s"]`, strings.Join(strings.Split(styles[0], ","), `","`)))
		}
	}

	if format, formatOK := params["format"]; formatOK {
		jsonFields = append(jsonFields, fmt.Sprintf(`"format":%s`, strconv.Quote(format[0])))
	}

	jsonParams := fmt.Sprintf("{%s}", strings.Join(jsonFields, ","))

	var wmsParams WMSParams
	err := json.Unmarshal([]byte(jsonParams), &wmsParams)

	return wmsParams, err
}

// CheckWMSParams performs the validation of a GetMap
// request that the regexp pass cannot express: the
// bounding box has to describe a non empty area and
// the output size has to be strictly positive.
func CheckWMSParams(params WMSParams) error {
	if len(params.BBox) != 4 {
		return fmt.Errorf("Request %s should contain a valid bbox parameter.", *params.Request)
	}
	if params.BBox[2] <= params.BBox[0] || params.BBox[3] <= params.BBox[1] {
		return fmt.Errorf("Request %s contains an empty bounding box.", *params.Request)
	}
	if params.Height == nil || params.Width == nil || *params.Height <= 0 || *params.Width <= 0 {
		return fmt.Errorf("Request %s should contain valid width and height parameters.", *params.Request)
	}
	return nil
}

// ExecuteWriteTemplateFile parses and executes the
// content of a template file with the values of a
// data structure, writing the result to an io.Writer.
func ExecuteWriteTemplateFile(w io.Writer, data interface{}, filePath string) error {
	tplStr, err := ioutil.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("Error trying to read %s file: %v", filePath, err)
	}
	tpl, err := template.New("template").Parse(string(tplStr))
	if err != nil {
		return fmt.Errorf("Error trying to parse template document: %v", err)
	}
	err = tpl.Execute(w, data)
	if err != nil {
		return fmt.Errorf("Error executing template: %v\n", err)
	}

	return nil
}
