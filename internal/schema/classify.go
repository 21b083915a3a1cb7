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

// Package schema partitions the columns of a dataset into numeric and
// categorical roles.
package schema

import (
	"github.com/magpierre/dsb-eda/datatable"
)

// Column describes one classified column.
type Column struct {
	Name string             `json:"name" yaml:"name"`
	Role datatable.Role     `json:"role" yaml:"role"`
	Type datatable.DataType `json:"-" yaml:"-"`
}

// Schema is the ordered classification of every column of one dataset.
type Schema struct {
	Columns     []Column `json:"columns"`
	Fingerprint string   `json:"fingerprint"`
}

// Classify assigns a role to every column of ds. A column is numeric when its
// declared type is an integer, float or decimal type; every other column is
// categorical.
func Classify(ds *datatable.Dataset) (Schema, error) {
	if ds == nil || ds.ColumnCount() == 0 {
		return Schema{}, datatable.Errorf(datatable.ErrEmptyDataset, "no columns")
	}
	if ds.RowCount() == 0 {
		return Schema{}, datatable.Errorf(datatable.ErrEmptyDataset, "no rows")
	}

	cols := make([]Column, ds.ColumnCount())
	for i := range cols {
		name, _ := ds.ColumnName(i)
		typ, _ := ds.ColumnType(i)
		role := datatable.RoleCategorical
		if typ.IsNumeric() {
			role = datatable.RoleNumeric
		}
		cols[i] = Column{Name: name, Role: role, Type: typ}
	}
	return Schema{Columns: cols, Fingerprint: ds.Fingerprint()}, nil
}

// For reports whether s was computed for ds.
func (s Schema) For(ds *datatable.Dataset) bool {
	return ds != nil && s.Fingerprint != "" && s.Fingerprint == ds.Fingerprint()
}

// Lookup returns the named column.
func (s Schema) Lookup(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Role returns the role of the named column, or ErrInvalidColumn.
func (s Schema) Role(name string) (datatable.Role, error) {
	c, ok := s.Lookup(name)
	if !ok {
		return 0, datatable.Errorf(datatable.ErrInvalidColumn, "column %q not found", name)
	}
	return c.Role, nil
}

// Numeric returns the numeric column names in dataset order.
func (s Schema) Numeric() []string { return s.names(datatable.RoleNumeric) }

// Categorical returns the categorical column names in dataset order.
func (s Schema) Categorical() []string { return s.names(datatable.RoleCategorical) }

func (s Schema) names(role datatable.Role) []string {
	var out []string
	for _, c := range s.Columns {
		if c.Role == role {
			out = append(out, c.Name)
		}
	}
	return out
}
