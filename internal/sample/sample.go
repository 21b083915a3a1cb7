// Package sample ships the datasets available without any upload.
package sample

import (
	_ "embed"
	"sort"

	"github.com/magpierre/dsb-eda/datatable"
)

// Iris is the name of the classic iris measurements: 150 rows, four numeric
// columns and a species column with three values.
const Iris = "iris"

//go:embed iris.csv
var irisCSV []byte

var datasets = map[string][]byte{
	Iris: irisCSV,
}

// Names lists the packaged datasets.
func Names() []string {
	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CSV returns the raw CSV content of a packaged dataset.
func CSV(name string) ([]byte, error) {
	data, ok := datasets[name]
	if !ok {
		return nil, datatable.Errorf(datatable.ErrMalformedInput, "no sample dataset named %q", name)
	}
	return data, nil
}
