// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package filter selects dataset rows: categorical membership filters,
// AND/OR composites and free-text search queries.
package filter

import (
	"sort"
	"strings"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/schema"
)

// Spec keeps the rows whose Column value is one of Values. Values are
// compared against the formatted cell text.
type Spec struct {
	Column string   `json:"column" yaml:"column"`
	Values []string `json:"values" yaml:"values"`
}

// Canonical returns the sorted, de-duplicated value set. Two specs selecting
// the same set yield the same canonical form regardless of order.
func (s Spec) Canonical() []string {
	seen := make(map[string]bool, len(s.Values))
	out := make([]string, 0, len(s.Values))
	for _, v := range s.Values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Apply returns the rows of ds whose spec.Column value is in spec.Values,
// in their original order and with every column kept. A nil spec, or a
// dataset without categorical columns, returns ds itself. An empty value
// set yields zero rows. Null cells never match.
func Apply(ds *datatable.Dataset, sch schema.Schema, spec *Spec) (*datatable.Dataset, error) {
	if spec == nil || len(sch.Categorical()) == 0 {
		return ds, nil
	}

	col, ok := sch.Lookup(spec.Column)
	if !ok {
		return nil, datatable.Errorf(datatable.ErrInvalidColumn, "filter column %q not found", spec.Column)
	}
	if col.Role != datatable.RoleCategorical {
		return nil, datatable.Errorf(datatable.ErrInvalidColumn, "filter column %q is %s, want categorical", spec.Column, col.Role)
	}

	values, err := ds.Values(spec.Column)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(spec.Values))
	for _, v := range spec.Values {
		wanted[v] = true
	}

	indices := make([]int, 0, len(values))
	for i, v := range values {
		if !v.IsNull && wanted[v.Formatted] {
			indices = append(indices, i)
		}
	}
	return ds.Take(indices)
}

// Evaluate returns the rows of ds for which f passes, in their original
// order. A nil filter returns ds itself.
func Evaluate(ds *datatable.Dataset, f datatable.Filter) (*datatable.Dataset, error) {
	if f == nil {
		return ds, nil
	}

	names := ds.Names()
	indices := make([]int, 0, ds.RowCount())
	for i := 0; i < ds.RowCount(); i++ {
		row, err := ds.Row(i)
		if err != nil {
			return nil, err
		}
		ok, err := f.Evaluate(row, names)
		if err != nil {
			return nil, err
		}
		if ok {
			indices = append(indices, i)
		}
	}
	return ds.Take(indices)
}

// DistinctValues lists the non-null values of a column in order of first
// appearance.
func DistinctValues(ds *datatable.Dataset, column string) ([]string, error) {
	values, err := ds.Values(column)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		if v.IsNull || seen[v.Formatted] {
			continue
		}
		seen[v.Formatted] = true
		out = append(out, v.Formatted)
	}
	return out, nil
}

// Membership is the row-predicate form of Spec, for use in a CompositeFilter.
type Membership struct {
	Spec
	set map[string]bool
}

// NewMembership builds a membership predicate from spec.
func NewMembership(spec Spec) *Membership {
	set := make(map[string]bool, len(spec.Values))
	for _, v := range spec.Values {
		set[v] = true
	}
	return &Membership{Spec: spec, set: set}
}

// Evaluate implements datatable.Filter.
func (m *Membership) Evaluate(row []datatable.Value, columnNames []string) (bool, error) {
	for i, name := range columnNames {
		if name != m.Column {
			continue
		}
		if i >= len(row) {
			return false, datatable.Errorf(datatable.ErrInvalidRow, "row has %d values, column %q is at %d", len(row), name, i)
		}
		v := row[i]
		return !v.IsNull && m.set[v.Formatted], nil
	}
	return false, datatable.Errorf(datatable.ErrInvalidColumn, "filter column %q not found", m.Column)
}

// Description implements datatable.Filter.
func (m *Membership) Description() string {
	return m.Column + " in [" + strings.Join(m.Canonical(), ", ") + "]"
}
