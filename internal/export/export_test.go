package export_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/export"
	"github.com/magpierre/dsb-eda/internal/loader"
)

func fixture(t *testing.T) *datatable.Dataset {
	t.Helper()
	ds, err := datatable.FromColumns(nil,
		datatable.NamedColumn{Name: "x", Data: datatable.Float64Column([]float64{1.5, math.NaN(), 3})},
		datatable.NamedColumn{Name: "n", Data: datatable.Int64Column([]int64{7, 8, 9})},
		datatable.NamedColumn{Name: "label", Data: datatable.StringColumn([]string{"a", "b,c", ""}, []bool{true, true, false})},
	)
	require.NoError(t, err)
	return ds
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.CSV(&buf, fixture(t)))
	assert.Equal(t, "x,n,label\n1.5,7,a\n,8,\"b,c\"\n3,9,\n", buf.String())

	ds, err := loader.Load(context.Background(), loader.CSV(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "n", "label"}, ds.Names())
	assert.Equal(t, 3, ds.RowCount())
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.JSON(&buf, fixture(t)))
	assert.JSONEq(t, `[
		{"x": 1.5, "n": 7, "label": "a"},
		{"x": null, "n": 8, "label": "b,c"},
		{"x": 3, "n": 9, "label": null}
	]`, buf.String())

	ds, err := loader.Load(context.Background(), loader.JSON(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "n", "label"}, ds.Names())
}

func TestParquet_RoundTrip(t *testing.T) {
	want := fixture(t)

	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, want, export.FormatParquet))

	got, err := loader.Load(context.Background(), loader.Parquet(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, want.Names(), got.Names())
	assert.Equal(t, want.Fingerprint(), got.Fingerprint())
}

func TestParseFormat(t *testing.T) {
	for _, f := range []export.Format{export.FormatCSV, export.FormatJSON, export.FormatParquet} {
		got, err := export.ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	got, err := export.ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, export.FormatJSON, got)

	_, err = export.ParseFormat("xlsx")
	assert.ErrorIs(t, err, datatable.ErrExportFailed)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWrite_FailingWriter(t *testing.T) {
	for _, f := range []export.Format{export.FormatCSV, export.FormatJSON} {
		err := export.Write(failingWriter{}, fixture(t), f)
		assert.ErrorIs(t, err, datatable.ErrExportFailed, f.String())
	}
}
