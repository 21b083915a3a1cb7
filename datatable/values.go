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
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// valueAt returns the typed value of an Arrow column at a specific position.
func valueAt(col arrow.Array, pos int) Value {
	dt := DataTypeOf(col.DataType())
	if col.IsNull(pos) {
		return NewNullValue(dt)
	}

	switch c := col.(type) {
	case *array.String:
		return NewValue(c.Value(pos), dt)
	case *array.LargeString:
		return NewValue(c.Value(pos), dt)
	case *array.Binary:
		return NewValue(c.Value(pos), dt)
	case *array.Boolean:
		return NewValue(c.Value(pos), dt)
	case *array.Int8:
		return NewValue(c.Value(pos), dt)
	case *array.Int16:
		return NewValue(c.Value(pos), dt)
	case *array.Int32:
		return NewValue(c.Value(pos), dt)
	case *array.Int64:
		return NewValue(c.Value(pos), dt)
	case *array.Uint8:
		return NewValue(c.Value(pos), dt)
	case *array.Uint16:
		return NewValue(c.Value(pos), dt)
	case *array.Uint32:
		return NewValue(c.Value(pos), dt)
	case *array.Uint64:
		return NewValue(c.Value(pos), dt)
	case *array.Float16:
		return NewValue(c.Value(pos).Float32(), dt)
	case *array.Float32:
		return NewValue(c.Value(pos), dt)
	case *array.Float64:
		return NewValue(c.Value(pos), dt)
	case *array.Date32:
		return NewValue(c.Value(pos).ToTime(), dt)
	case *array.Date64:
		return NewValue(c.Value(pos).ToTime(), dt)
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return NewValue(c.Value(pos).ToTime(unit), dt)
	case *array.Decimal128:
		scale := c.DataType().(*arrow.Decimal128Type).Scale
		return NewValue(c.Value(pos).ToFloat64(scale), dt)
	default:
		return NewValue(col.ValueStr(pos), dt)
	}
}

// float64At reads a numeric column position as float64. ok is false for
// nulls and non-numeric columns.
func float64At(col arrow.Array, pos int) (float64, bool) {
	if col.IsNull(pos) {
		return 0, false
	}
	switch c := col.(type) {
	case *array.Int8:
		return float64(c.Value(pos)), true
	case *array.Int16:
		return float64(c.Value(pos)), true
	case *array.Int32:
		return float64(c.Value(pos)), true
	case *array.Int64:
		return float64(c.Value(pos)), true
	case *array.Uint8:
		return float64(c.Value(pos)), true
	case *array.Uint16:
		return float64(c.Value(pos)), true
	case *array.Uint32:
		return float64(c.Value(pos)), true
	case *array.Uint64:
		return float64(c.Value(pos)), true
	case *array.Float16:
		return float64(c.Value(pos).Float32()), true
	case *array.Float32:
		return float64(c.Value(pos)), true
	case *array.Float64:
		return c.Value(pos), true
	case *array.Decimal128:
		scale := c.DataType().(*arrow.Decimal128Type).Scale
		return c.Value(pos).ToFloat64(scale), true
	default:
		return 0, false
	}
}

// takeColumn gathers the given positions of col into a new array.
func takeColumn(mem memory.Allocator, col arrow.Array, indices []int) (arrow.Array, error) {
	switch col.DataType().ID() {
	case arrow.STRUCT, arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST, arrow.MAP,
		arrow.DICTIONARY, arrow.EXTENSION, arrow.DENSE_UNION, arrow.SPARSE_UNION:
		return takeBySlicing(mem, col, indices)
	}

	builder := array.NewBuilder(mem, col.DataType())
	defer builder.Release()
	builder.Reserve(len(indices))

	for _, pos := range indices {
		if !appendValueToBuilder(builder, col, pos) {
			return takeBySlicing(mem, col, indices)
		}
	}
	return builder.NewArray(), nil
}

// takeBySlicing handles nested and exotic types by concatenating zero-copy
// slices of consecutive runs.
func takeBySlicing(mem memory.Allocator, col arrow.Array, indices []int) (arrow.Array, error) {
	if len(indices) == 0 {
		return array.NewSlice(col, 0, 0), nil
	}

	var slices []arrow.Array
	defer func() {
		for _, s := range slices {
			s.Release()
		}
	}()

	start := indices[0]
	prev := start
	for _, pos := range indices[1:] {
		if pos == prev+1 {
			prev = pos
			continue
		}
		slices = append(slices, array.NewSlice(col, int64(start), int64(prev+1)))
		start, prev = pos, pos
	}
	slices = append(slices, array.NewSlice(col, int64(start), int64(prev+1)))

	return array.Concatenate(slices, mem)
}

// appendValueToBuilder appends a typed value from an Arrow array to a builder.
// It returns false when the type has no direct builder path.
func appendValueToBuilder(builder array.Builder, col arrow.Array, pos int) bool {
	if col.IsNull(pos) {
		builder.AppendNull()
		return true
	}

	switch c := col.(type) {
	case *array.String:
		builder.(*array.StringBuilder).Append(c.Value(pos))
	case *array.LargeString:
		builder.(*array.LargeStringBuilder).Append(c.Value(pos))
	case *array.Binary:
		builder.(*array.BinaryBuilder).Append(c.Value(pos))
	case *array.Boolean:
		builder.(*array.BooleanBuilder).Append(c.Value(pos))
	case *array.Int8:
		builder.(*array.Int8Builder).Append(c.Value(pos))
	case *array.Int16:
		builder.(*array.Int16Builder).Append(c.Value(pos))
	case *array.Int32:
		builder.(*array.Int32Builder).Append(c.Value(pos))
	case *array.Int64:
		builder.(*array.Int64Builder).Append(c.Value(pos))
	case *array.Uint8:
		builder.(*array.Uint8Builder).Append(c.Value(pos))
	case *array.Uint16:
		builder.(*array.Uint16Builder).Append(c.Value(pos))
	case *array.Uint32:
		builder.(*array.Uint32Builder).Append(c.Value(pos))
	case *array.Uint64:
		builder.(*array.Uint64Builder).Append(c.Value(pos))
	case *array.Float16:
		builder.(*array.Float16Builder).Append(c.Value(pos))
	case *array.Float32:
		builder.(*array.Float32Builder).Append(c.Value(pos))
	case *array.Float64:
		builder.(*array.Float64Builder).Append(c.Value(pos))
	case *array.Date32:
		builder.(*array.Date32Builder).Append(c.Value(pos))
	case *array.Date64:
		builder.(*array.Date64Builder).Append(c.Value(pos))
	case *array.Timestamp:
		builder.(*array.TimestampBuilder).Append(c.Value(pos))
	case *array.Decimal128:
		builder.(*array.Decimal128Builder).Append(c.Value(pos))
	default:
		return false
	}
	return true
}
