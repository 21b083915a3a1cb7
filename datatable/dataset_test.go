package datatable_test

import (
	"errors"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/dsb-eda/datatable"
)

func newFixture(t *testing.T) *datatable.Dataset {
	t.Helper()
	ds, err := datatable.FromColumns(datatable.Metadata{"source": "fixture"},
		datatable.NamedColumn{Name: "x", Data: datatable.Float64Column([]float64{3, 1, math.NaN(), 2})},
		datatable.NamedColumn{Name: "n", Data: datatable.Int64Column([]int64{10, 20, 30, 40})},
		datatable.NamedColumn{Name: "kind", Data: datatable.StringColumn([]string{"a", "b", "", "a"}, []bool{true, true, false, true})},
	)
	require.NoError(t, err)
	return ds
}

func TestNew_RejectsBadShapes(t *testing.T) {
	t.Run("duplicate names", func(t *testing.T) {
		_, err := datatable.FromColumns(nil,
			datatable.NamedColumn{Name: "a", Data: datatable.Int64Column([]int64{1})},
			datatable.NamedColumn{Name: "a", Data: datatable.Int64Column([]int64{2})},
		)
		require.Error(t, err)
		assert.True(t, errors.Is(err, datatable.ErrMalformedInput))
	})

	t.Run("unequal lengths", func(t *testing.T) {
		_, err := datatable.FromColumns(nil,
			datatable.NamedColumn{Name: "a", Data: datatable.Int64Column([]int64{1, 2})},
			datatable.NamedColumn{Name: "b", Data: datatable.Int64Column([]int64{2})},
		)
		assert.ErrorIs(t, err, datatable.ErrMalformedInput)
	})

	t.Run("declared type mismatch", func(t *testing.T) {
		_, err := datatable.New(
			[]arrow.Field{{Name: "a", Type: arrow.BinaryTypes.String}},
			[]arrow.Array{datatable.Int64Column([]int64{1})},
			nil,
		)
		assert.ErrorIs(t, err, datatable.ErrMalformedInput)
	})
}

func TestDataset_DataSource(t *testing.T) {
	ds := newFixture(t)

	assert.Equal(t, 4, ds.RowCount())
	assert.Equal(t, 3, ds.ColumnCount())
	assert.Equal(t, []string{"x", "n", "kind"}, ds.Names())

	name, err := ds.ColumnName(2)
	require.NoError(t, err)
	assert.Equal(t, "kind", name)

	typ, err := ds.ColumnType(1)
	require.NoError(t, err)
	assert.Equal(t, datatable.TypeInt, typ)

	_, err = ds.ColumnName(9)
	assert.ErrorIs(t, err, datatable.ErrInvalidColumn)
	_, err = ds.Cell(4, 0)
	assert.ErrorIs(t, err, datatable.ErrInvalidRow)

	row, err := ds.Row(2)
	require.NoError(t, err)
	assert.True(t, row[0].IsNull)
	assert.Equal(t, "30", row[1].Formatted)
	assert.True(t, row[2].IsNull)

	assert.Equal(t, "fixture", ds.Metadata()["source"])
}

func TestDataset_Float64s(t *testing.T) {
	ds := newFixture(t)

	xs, err := ds.Float64s("x")
	require.NoError(t, err)
	assert.Equal(t, 3.0, xs[0])
	assert.True(t, math.IsNaN(xs[2]))

	ns, err := ds.Float64s("n")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30, 40}, ns)

	_, err = ds.Float64s("kind")
	assert.ErrorIs(t, err, datatable.ErrInvalidColumn)
	_, err = ds.Float64s("missing")
	assert.ErrorIs(t, err, datatable.ErrInvalidColumn)
}

func TestDataset_DerivationsDoNotMutate(t *testing.T) {
	ds := newFixture(t)
	before := ds.Fingerprint()

	head := ds.Head(2)
	assert.Equal(t, 2, head.RowCount())
	assert.Equal(t, 4, ds.Head(10).RowCount())

	taken, err := ds.Take([]int{3, 0})
	require.NoError(t, err)
	ns, err := taken.Float64s("n")
	require.NoError(t, err)
	assert.Equal(t, []float64{40, 10}, ns)

	_, err = ds.Take([]int{7})
	assert.ErrorIs(t, err, datatable.ErrInvalidRow)

	empty, err := ds.Take(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.RowCount())
	assert.Equal(t, 3, empty.ColumnCount())

	sel, err := ds.Select("kind", "x", "kind")
	require.NoError(t, err)
	assert.Equal(t, []string{"kind", "x"}, sel.Names())

	assert.Equal(t, before, ds.Fingerprint())
	assert.Equal(t, 4, ds.RowCount())
}

func TestDataset_SortBy(t *testing.T) {
	ds := newFixture(t)

	asc, err := ds.SortBy("x", datatable.SortAscending)
	require.NoError(t, err)
	xs, _ := asc.Float64s("x")
	assert.Equal(t, []float64{1, 2, 3}, xs[:3])
	assert.True(t, math.IsNaN(xs[3]), "nulls sort last")

	desc, err := ds.SortBy("kind", datatable.SortDescending)
	require.NoError(t, err)
	vals, err := desc.Values("kind")
	require.NoError(t, err)
	assert.Equal(t, "b", vals[0].Formatted)
	assert.True(t, vals[3].IsNull)

	same, err := ds.SortBy("x", datatable.SortNone)
	require.NoError(t, err)
	assert.Same(t, ds, same)
}

func TestDataset_Fingerprint(t *testing.T) {
	a := newFixture(t)
	b := newFixture(t)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c, err := a.Take([]int{0, 1, 2})
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	renamed, err := datatable.FromColumns(nil,
		datatable.NamedColumn{Name: "y", Data: datatable.Float64Column([]float64{3, 1, math.NaN(), 2})},
	)
	require.NoError(t, err)
	original, err := a.Select("x")
	require.NoError(t, err)
	assert.NotEqual(t, original.Fingerprint(), renamed.Fingerprint())
}

func TestDataset_FingerprintDecimalPrecision(t *testing.T) {
	typ := &arrow.Decimal128Type{Precision: 38, Scale: 20}
	decimals := func(v decimal128.Num) *datatable.Dataset {
		b := array.NewDecimal128Builder(memory.NewGoAllocator(), typ)
		defer b.Release()
		b.Append(v)
		ds, err := datatable.New([]arrow.Field{{Name: "amount", Type: typ, Nullable: true}}, []arrow.Array{b.NewArray()}, nil)
		require.NoError(t, err)
		return ds
	}

	// 1 and 1 + 1e-20 collapse to the same float64.
	one := decimal128.GetScaleMultiplier(20)
	a := decimals(one)
	b := decimals(one.Add(decimal128.FromU64(1)))

	av, err := a.Cell(0, 0)
	require.NoError(t, err)
	bv, err := b.Cell(0, 0)
	require.NoError(t, err)
	require.Equal(t, av.Formatted, bv.Formatted)

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, a.Fingerprint(), decimals(one).Fingerprint())
}

func TestDataset_WithColumnAndTable(t *testing.T) {
	ds := newFixture(t)

	wider, err := ds.WithColumn(
		arrow.Field{Name: "flag", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		datatable.BoolColumn([]bool{true, false, true, false}, nil),
	)
	require.NoError(t, err)
	assert.Equal(t, 4, wider.ColumnCount())
	assert.Equal(t, 3, ds.ColumnCount())

	_, err = ds.WithColumn(arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Int64}, datatable.Int64Column([]int64{1, 2, 3, 4}))
	assert.ErrorIs(t, err, datatable.ErrMalformedInput)

	tbl := ds.Table()
	defer tbl.Release()
	assert.EqualValues(t, 4, tbl.NumRows())
	assert.EqualValues(t, 3, tbl.NumCols())

	back, err := datatable.FromTable(tbl, nil)
	require.NoError(t, err)
	assert.Equal(t, ds.Fingerprint(), back.Fingerprint())
}

func TestErrorWrapsKind(t *testing.T) {
	err := datatable.Errorf(datatable.ErrUnsupportedRequest, "scatter needs %d numeric columns", 2)
	assert.True(t, errors.Is(err, datatable.ErrUnsupportedRequest))
	assert.Equal(t, "unsupported request: scatter needs 2 numeric columns", err.Error())
}
