package datatable

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// NamedColumn pairs a column name with its data.
type NamedColumn struct {
	Name string
	Data arrow.Array
}

// FromColumns builds a Dataset from named arrays. Every field is nullable.
func FromColumns(meta Metadata, cols ...NamedColumn) (*Dataset, error) {
	fields := make([]arrow.Field, len(cols))
	columns := make([]arrow.Array, len(cols))
	for i, c := range cols {
		if c.Data == nil {
			return nil, Errorf(ErrMalformedInput, "column %q has no data", c.Name)
		}
		fields[i] = arrow.Field{Name: c.Name, Type: c.Data.DataType(), Nullable: true}
		columns[i] = c.Data
	}
	return New(fields, columns, meta)
}

// Float64Column builds a float64 array. NaN entries are stored as nulls.
func Float64Column(values []float64) arrow.Array {
	b := array.NewFloat64Builder(memory.NewGoAllocator())
	defer b.Release()
	b.Reserve(len(values))
	for _, v := range values {
		if math.IsNaN(v) {
			b.AppendNull()
			continue
		}
		b.Append(v)
	}
	return b.NewFloat64Array()
}

// Int64Column builds an int64 array with no nulls.
func Int64Column(values []int64) arrow.Array {
	b := array.NewInt64Builder(memory.NewGoAllocator())
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewInt64Array()
}

// StringColumn builds a string array. valid may be nil, meaning no nulls.
func StringColumn(values []string, valid []bool) arrow.Array {
	b := array.NewStringBuilder(memory.NewGoAllocator())
	defer b.Release()
	b.AppendValues(values, valid)
	return b.NewStringArray()
}

// BoolColumn builds a boolean array. valid may be nil, meaning no nulls.
func BoolColumn(values []bool, valid []bool) arrow.Array {
	b := array.NewBooleanBuilder(memory.NewGoAllocator())
	defer b.Release()
	b.AppendValues(values, valid)
	return b.NewBooleanArray()
}
