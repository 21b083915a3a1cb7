// Package stats computes descriptive statistics and Pearson correlation
// matrices over the numeric columns of a dataset.
package stats

import (
	"math"
	"sort"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/stat"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/schema"
)

// StatNames lists the statistics of a ColumnSummary in display order.
var StatNames = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

// ColumnSummary holds the descriptive statistics of one numeric column.
// Nulls are excluded; a column without valid values has Count 0 and NaN
// everywhere else.
type ColumnSummary struct {
	Column string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q25    float64
	Median float64
	Q75    float64
	Max    float64
}

// Values returns the statistics in StatNames order.
func (c ColumnSummary) Values() []float64 {
	return []float64{float64(c.Count), c.Mean, c.Std, c.Min, c.Q25, c.Median, c.Q75, c.Max}
}

// MarshalJSON writes NaN statistics as null.
func (c ColumnSummary) MarshalJSON() ([]byte, error) {
	out := struct {
		Column string   `json:"column"`
		Count  int      `json:"count"`
		Mean   *float64 `json:"mean"`
		Std    *float64 `json:"std"`
		Min    *float64 `json:"min"`
		Q25    *float64 `json:"25%"`
		Median *float64 `json:"50%"`
		Q75    *float64 `json:"75%"`
		Max    *float64 `json:"max"`
	}{
		Column: c.Column,
		Count:  c.Count,
		Mean:   finite(c.Mean),
		Std:    finite(c.Std),
		Min:    finite(c.Min),
		Q25:    finite(c.Q25),
		Median: finite(c.Median),
		Q75:    finite(c.Q75),
		Max:    finite(c.Max),
	}
	return json.Marshal(out)
}

// Summary is the result of Describe, one entry per numeric column in
// dataset order.
type Summary struct {
	Columns []ColumnSummary `json:"columns"`
}

// Describe summarizes every numeric column of ds.
func Describe(ds *datatable.Dataset, sch schema.Schema) (*Summary, error) {
	numeric := sch.Numeric()
	if len(numeric) == 0 {
		return nil, datatable.Errorf(datatable.ErrNoNumericColumns, "nothing to describe")
	}

	out := &Summary{Columns: make([]ColumnSummary, 0, len(numeric))}
	for _, name := range numeric {
		xs, err := ds.Float64s(name)
		if err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, summarize(name, xs))
	}
	return out, nil
}

func summarize(name string, xs []float64) ColumnSummary {
	vals := valid(xs)
	sort.Float64s(vals)

	s := ColumnSummary{Column: name, Count: len(vals)}
	if len(vals) == 0 {
		nan := math.NaN()
		s.Mean, s.Std, s.Min, s.Q25, s.Median, s.Q75, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}
	s.Mean = stat.Mean(vals, nil)
	s.Std = math.NaN()
	if len(vals) > 1 {
		s.Std = stat.StdDev(vals, nil)
	}
	s.Min = vals[0]
	s.Q25 = quantileSorted(vals, 0.25)
	s.Median = quantileSorted(vals, 0.5)
	s.Q75 = quantileSorted(vals, 0.75)
	s.Max = vals[len(vals)-1]
	return s
}

// Dataset lays the summary out as a table: a "statistic" column followed by
// one float64 column per described column. NaN statistics become nulls.
func (s *Summary) Dataset() (*datatable.Dataset, error) {
	cols := make([]datatable.NamedColumn, 0, len(s.Columns)+1)
	cols = append(cols, datatable.NamedColumn{Name: "statistic", Data: datatable.StringColumn(StatNames, nil)})
	for _, c := range s.Columns {
		cols = append(cols, datatable.NamedColumn{Name: c.Column, Data: datatable.Float64Column(c.Values())})
	}
	return datatable.FromColumns(datatable.Metadata{"kind": "describe"}, cols...)
}

// Lookup returns the summary of the named column.
func (s *Summary) Lookup(column string) (ColumnSummary, bool) {
	for _, c := range s.Columns {
		if c.Column == column {
			return c, true
		}
	}
	return ColumnSummary{}, false
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
