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

package datatable

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Dataset is an immutable table of equally long, uniquely named columns.
// Every derivation (Head, Take, Select, SortBy, WithColumn) returns a new
// Dataset; the receiver is never modified, so a Dataset may be shared freely
// between goroutines.
type Dataset struct {
	schema  *arrow.Schema
	columns []arrow.Array
	rows    int
	meta    Metadata

	fpOnce sync.Once
	fp     string
}

var _ DataSource = (*Dataset)(nil)

// New builds a Dataset from parallel fields and columns.
func New(fields []arrow.Field, columns []arrow.Array, meta Metadata) (*Dataset, error) {
	if len(fields) != len(columns) {
		return nil, Errorf(ErrMalformedInput, "%d fields for %d columns", len(fields), len(columns))
	}

	seen := make(map[string]bool, len(fields))
	rows := 0
	for i, f := range fields {
		if seen[f.Name] {
			return nil, Errorf(ErrMalformedInput, "duplicate column name %q", f.Name)
		}
		seen[f.Name] = true

		col := columns[i]
		if col == nil {
			return nil, Errorf(ErrMalformedInput, "column %q has no data", f.Name)
		}
		if !arrow.TypeEqual(f.Type, col.DataType()) {
			return nil, Errorf(ErrMalformedInput, "column %q declared %s but holds %s", f.Name, f.Type, col.DataType())
		}
		if i == 0 {
			rows = col.Len()
		} else if col.Len() != rows {
			return nil, Errorf(ErrMalformedInput, "column %q has %d rows, want %d", f.Name, col.Len(), rows)
		}
	}

	return &Dataset{
		schema:  arrow.NewSchema(fields, nil),
		columns: columns,
		rows:    rows,
		meta:    copyMetadata(meta),
	}, nil
}

// FromTable flattens an Arrow table into a Dataset, concatenating chunks.
func FromTable(table arrow.Table, meta Metadata) (*Dataset, error) {
	mem := memory.NewGoAllocator()
	schema := table.Schema()

	fields := make([]arrow.Field, schema.NumFields())
	columns := make([]arrow.Array, schema.NumFields())
	for i, field := range schema.Fields() {
		fields[i] = field
		chunks := table.Column(i).Data().Chunks()
		switch len(chunks) {
		case 0:
			columns[i] = array.MakeArrayOfNull(mem, field.Type, 0)
		case 1:
			chunks[0].Retain()
			columns[i] = chunks[0]
		default:
			arr, err := array.Concatenate(chunks, mem)
			if err != nil {
				return nil, Errorf(ErrMalformedInput, "column %q: %v", field.Name, err)
			}
			columns[i] = arr
		}
	}
	return New(fields, columns, meta)
}

// RowCount returns the number of rows.
func (d *Dataset) RowCount() int { return d.rows }

// ColumnCount returns the number of columns.
func (d *Dataset) ColumnCount() int { return len(d.columns) }

// ColumnName returns the name of the column at the given index.
func (d *Dataset) ColumnName(col int) (string, error) {
	if col < 0 || col >= len(d.columns) {
		return "", Errorf(ErrInvalidColumn, "index %d out of range", col)
	}
	return d.schema.Field(col).Name, nil
}

// ColumnType returns the data type of the column at the given index.
func (d *Dataset) ColumnType(col int) (DataType, error) {
	if col < 0 || col >= len(d.columns) {
		return TypeString, Errorf(ErrInvalidColumn, "index %d out of range", col)
	}
	return DataTypeOf(d.columns[col].DataType()), nil
}

// Cell returns the value at the specified row and column.
func (d *Dataset) Cell(row, col int) (Value, error) {
	if row < 0 || row >= d.rows {
		return Value{}, Errorf(ErrInvalidRow, "row %d out of range", row)
	}
	if col < 0 || col >= len(d.columns) {
		return Value{}, Errorf(ErrInvalidColumn, "index %d out of range", col)
	}
	return valueAt(d.columns[col], row), nil
}

// Row returns all values of one row.
func (d *Dataset) Row(row int) ([]Value, error) {
	if row < 0 || row >= d.rows {
		return nil, Errorf(ErrInvalidRow, "row %d out of range", row)
	}
	out := make([]Value, len(d.columns))
	for i, col := range d.columns {
		out[i] = valueAt(col, row)
	}
	return out, nil
}

// Metadata returns a copy of the dataset's metadata.
func (d *Dataset) Metadata() Metadata {
	return copyMetadata(d.meta)
}

// Schema returns the Arrow schema of the dataset.
func (d *Dataset) Schema() *arrow.Schema { return d.schema }

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.columns))
	for i, f := range d.schema.Fields() {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (d *Dataset) Index(name string) int {
	for i, f := range d.schema.Fields() {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether the named column exists.
func (d *Dataset) Has(name string) bool { return d.Index(name) >= 0 }

// Column returns the Arrow array backing the named column.
func (d *Dataset) Column(name string) (arrow.Array, error) {
	idx := d.Index(name)
	if idx < 0 {
		return nil, Errorf(ErrInvalidColumn, "column %q not found", name)
	}
	return d.columns[idx], nil
}

// Field returns the Arrow field describing the named column.
func (d *Dataset) Field(name string) (arrow.Field, error) {
	idx := d.Index(name)
	if idx < 0 {
		return arrow.Field{}, Errorf(ErrInvalidColumn, "column %q not found", name)
	}
	return d.schema.Field(idx), nil
}

// Values returns every cell of the named column.
func (d *Dataset) Values(name string) ([]Value, error) {
	col, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]Value, col.Len())
	for i := range out {
		out[i] = valueAt(col, i)
	}
	return out, nil
}

// Float64s returns the named numeric column as float64s, with NaN for nulls.
func (d *Dataset) Float64s(name string) ([]float64, error) {
	col, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	if !DataTypeOf(col.DataType()).IsNumeric() {
		return nil, Errorf(ErrInvalidColumn, "column %q is %s, not numeric", name, col.DataType())
	}
	out := make([]float64, col.Len())
	for i := range out {
		v, ok := float64At(col, i)
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out, nil
}

// Head returns the first n rows. The columns are zero-copy slices.
func (d *Dataset) Head(n int) *Dataset {
	if n < 0 {
		n = 0
	}
	if n >= d.rows {
		return d
	}
	columns := make([]arrow.Array, len(d.columns))
	for i, col := range d.columns {
		columns[i] = array.NewSlice(col, 0, int64(n))
	}
	return &Dataset{
		schema:  d.schema,
		columns: columns,
		rows:    n,
		meta:    copyMetadata(d.meta),
	}
}

// Select returns a dataset restricted to the named columns, in the given
// order. Repeated names are kept once.
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	fields := make([]arrow.Field, 0, len(names))
	columns := make([]arrow.Array, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		idx := d.Index(name)
		if idx < 0 {
			return nil, Errorf(ErrInvalidColumn, "column %q not found", name)
		}
		fields = append(fields, d.schema.Field(idx))
		columns = append(columns, d.columns[idx])
	}
	out := &Dataset{
		schema:  arrow.NewSchema(fields, nil),
		columns: columns,
		rows:    d.rows,
		meta:    copyMetadata(d.meta),
	}
	if len(columns) == 0 {
		out.rows = 0
	}
	return out, nil
}

// Take returns the rows at the given indices, in the order given.
func (d *Dataset) Take(indices []int) (*Dataset, error) {
	for _, idx := range indices {
		if idx < 0 || idx >= d.rows {
			return nil, Errorf(ErrInvalidRow, "row %d out of range", idx)
		}
	}

	mem := memory.NewGoAllocator()
	columns := make([]arrow.Array, len(d.columns))
	for i, col := range d.columns {
		arr, err := takeColumn(mem, col, indices)
		if err != nil {
			return nil, Errorf(ErrMalformedInput, "column %q: %v", d.schema.Field(i).Name, err)
		}
		columns[i] = arr
	}
	return &Dataset{
		schema:  d.schema,
		columns: columns,
		rows:    len(indices),
		meta:    copyMetadata(d.meta),
	}, nil
}

// SortBy returns the rows ordered by the named column. The sort is stable
// and nulls (and NaN) go last in either direction. SortNone returns d.
func (d *Dataset) SortBy(name string, dir SortDirection) (*Dataset, error) {
	col, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	if dir == SortNone {
		return d, nil
	}

	indices := make([]int, d.rows)
	for i := range indices {
		indices[i] = i
	}

	if DataTypeOf(col.DataType()).IsNumeric() {
		keys, _ := d.Float64s(name)
		sort.SliceStable(indices, func(a, b int) bool {
			ka, kb := keys[indices[a]], keys[indices[b]]
			switch {
			case math.IsNaN(ka):
				return false
			case math.IsNaN(kb):
				return true
			case dir == SortDescending:
				return ka > kb
			default:
				return ka < kb
			}
		})
	} else {
		keys := make([]Value, d.rows)
		for i := range keys {
			keys[i] = valueAt(col, i)
		}
		sort.SliceStable(indices, func(a, b int) bool {
			ka, kb := keys[indices[a]], keys[indices[b]]
			switch {
			case ka.IsNull:
				return false
			case kb.IsNull:
				return true
			case dir == SortDescending:
				return strings.Compare(ka.Formatted, kb.Formatted) > 0
			default:
				return strings.Compare(ka.Formatted, kb.Formatted) < 0
			}
		})
	}
	return d.Take(indices)
}

// WithColumn returns a dataset with one more column appended.
func (d *Dataset) WithColumn(field arrow.Field, col arrow.Array) (*Dataset, error) {
	if d.Has(field.Name) {
		return nil, Errorf(ErrMalformedInput, "duplicate column name %q", field.Name)
	}
	fields := append(append([]arrow.Field(nil), d.schema.Fields()...), field)
	columns := append(append([]arrow.Array(nil), d.columns...), col)
	return New(fields, columns, d.meta)
}

// Table exposes the dataset as a single-chunk Arrow table.
func (d *Dataset) Table() arrow.Table {
	columns := make([]arrow.Column, len(d.columns))
	for i, col := range d.columns {
		field := d.schema.Field(i)
		chunked := arrow.NewChunked(field.Type, []arrow.Array{col})
		columns[i] = *arrow.NewColumn(field, chunked)
		chunked.Release()
	}
	return array.NewTable(d.schema, columns, int64(d.rows))
}

func copyMetadata(meta Metadata) Metadata {
	out := make(Metadata, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
