package schema_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/schema"
)

func mixedDataset(t *testing.T) *datatable.Dataset {
	t.Helper()

	mem := memory.NewGoAllocator()
	tb := array.NewTimestampBuilder(mem, &arrow.TimestampType{Unit: arrow.Second})
	defer tb.Release()
	tb.AppendValues([]arrow.Timestamp{1, 2}, nil)

	ds, err := datatable.FromColumns(nil,
		datatable.NamedColumn{Name: "price", Data: datatable.Float64Column([]float64{1.5, 2.5})},
		datatable.NamedColumn{Name: "qty", Data: datatable.Int64Column([]int64{1, 2})},
		datatable.NamedColumn{Name: "city", Data: datatable.StringColumn([]string{"Oslo", "Lund"}, nil)},
		datatable.NamedColumn{Name: "active", Data: datatable.BoolColumn([]bool{true, false}, nil)},
		datatable.NamedColumn{Name: "seen", Data: tb.NewArray()},
	)
	require.NoError(t, err)
	return ds
}

func TestClassify(t *testing.T) {
	ds := mixedDataset(t)

	sch, err := schema.Classify(ds)
	require.NoError(t, err)

	tests := []struct {
		column string
		role   datatable.Role
	}{
		{"price", datatable.RoleNumeric},
		{"qty", datatable.RoleNumeric},
		{"city", datatable.RoleCategorical},
		{"active", datatable.RoleCategorical},
		{"seen", datatable.RoleCategorical},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			role, err := sch.Role(tt.column)
			require.NoError(t, err)
			assert.Equal(t, tt.role, role)
		})
	}

	assert.Equal(t, []string{"price", "qty"}, sch.Numeric())
	assert.Equal(t, []string{"city", "active", "seen"}, sch.Categorical())
	assert.True(t, sch.For(ds))
}

func TestClassify_PartitionsEveryColumn(t *testing.T) {
	ds := mixedDataset(t)
	sch, err := schema.Classify(ds)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, name := range sch.Numeric() {
		seen[name]++
	}
	for _, name := range sch.Categorical() {
		seen[name]++
	}
	require.Len(t, seen, ds.ColumnCount())
	for name, n := range seen {
		assert.Equal(t, 1, n, name)
	}
}

func TestClassify_Empty(t *testing.T) {
	noCols, err := datatable.FromColumns(nil)
	require.NoError(t, err)
	_, err = schema.Classify(noCols)
	assert.ErrorIs(t, err, datatable.ErrEmptyDataset)

	noRows, err := datatable.FromColumns(nil,
		datatable.NamedColumn{Name: "a", Data: datatable.Float64Column(nil)},
	)
	require.NoError(t, err)
	_, err = schema.Classify(noRows)
	assert.ErrorIs(t, err, datatable.ErrEmptyDataset)
}

func TestSchema_ForOtherDataset(t *testing.T) {
	ds := mixedDataset(t)
	sch, err := schema.Classify(ds)
	require.NoError(t, err)

	other, err := ds.Select("price")
	require.NoError(t, err)
	assert.False(t, sch.For(other))

	_, err = sch.Role("missing")
	assert.ErrorIs(t, err, datatable.ErrInvalidColumn)
}
