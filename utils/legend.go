package utils

import (
	"fmt"
	"io/ioutil"
	"sort"

	"gopkg.in/yaml.v2"
)

// ClassEntry maps one discrete land-cover class value
// to a human readable label. The colour shown next to
// the label comes from the raster colour table, not
// from this file.
type ClassEntry struct {
	Value int    `yaml:"value"`
	Label string `yaml:"label"`
}

type ClassLegend struct {
	Title   string       `yaml:"title"`
	Classes []ClassEntry `yaml:"classes"`
}

// LoadClassLegend reads a YAML legend document listing
// the class values of a layer and their labels. Entries
// are returned sorted by class value.
func LoadClassLegend(path string) (*ClassLegend, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Error while reading legend file: %s. Error: %v", path, err)
	}

	legend := &ClassLegend{}
	err = yaml.Unmarshal(data, legend)
	if err != nil {
		return nil, fmt.Errorf("Error at YAML parsing legend document: %s. Error: %v", path, err)
	}

	if len(legend.Classes) == 0 {
		return nil, fmt.Errorf("Legend document %s does not define any class", path)
	}

	for _, class := range legend.Classes {
		if class.Value < 0 {
			return nil, fmt.Errorf("Legend document %s contains negative class value %d", path, class.Value)
		}
	}

	sort.Slice(legend.Classes, func(i, j int) bool {
		return legend.Classes[i].Value < legend.Classes[j].Value
	})

	return legend, nil
}
