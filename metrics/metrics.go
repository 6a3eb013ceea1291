package metrics

import (
	"bytes"
	"encoding/json"
	"net"
	"net/url"
	"time"
)

type URLInfo struct {
	RawURL string            `json:"raw_url"`
	Host   string            `json:"host"`
	Path   string            `json:"path"`
	Query  map[string]string `json:"query"`
}

type IndexerInfo struct {
	Duration    time.Duration `json:"duration"`
	NumItems    int           `json:"num_items"`
	NumGranules int           `json:"num_granules"`
}

// ReaderInfo counters are updated from concurrent granule
// reads, so they are int64 for atomic adds.
type ReaderInfo struct {
	Duration    time.Duration `json:"duration"`
	NumGranules int64         `json:"num_granules"`
	BytesRead   int64         `json:"bytes_read"`
}

type MetricsInfo struct {
	ReqTime     string        `json:"req_time"`
	ReqDuration time.Duration `json:"req_duration"`
	URL         URLInfo       `json:"url"`
	RemoteAddr  string        `json:"remote_addr"`
	RemoteHost  string        `json:"remote_host"`
	RemotePort  string        `json:"remote_port"`
	HTTPStatus  int           `json:"http_status"`
	Indexer     *IndexerInfo  `json:"indexer"`
	Reader      *ReaderInfo   `json:"reader"`
}

type MetricsCollector struct {
	Info   *MetricsInfo
	logger Logger
}

func NewMetricsCollector(logger Logger) *MetricsCollector {
	return &MetricsCollector{
		Info: &MetricsInfo{
			Indexer: &IndexerInfo{},
			Reader:  &ReaderInfo{},
		},
		logger: logger,
	}
}

func (m *MetricsCollector) Log() {
	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

func (i *MetricsInfo) ToJSON() (string, error) {
	i.normaliseNetworkAddr(i.RemoteAddr)
	i.normaliseURL()

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(i)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (i *MetricsInfo) normaliseNetworkAddr(remoteAddr string) {
	host, port, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return
	}
	i.RemoteHost = host
	i.RemotePort = port
}

func (i *MetricsInfo) normaliseURL() {
	u, err := url.Parse(i.URL.RawURL)
	if err != nil {
		return
	}

	i.URL.Host = u.Host
	i.URL.Path = u.Path

	query := make(map[string]string)
	for key, vals := range u.Query() {
		if len(vals) > 0 {
			query[key] = vals[0]
		}
	}
	i.URL.Query = query
}
