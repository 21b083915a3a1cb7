package loader_test

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/loader"
	"github.com/magpierre/dsb-eda/internal/sample"
)

func TestLoad_SampleIris(t *testing.T) {
	ds, err := loader.Load(context.Background(), loader.Sample(sample.Iris))
	require.NoError(t, err)

	assert.Equal(t, 150, ds.RowCount())
	assert.Equal(t, []string{
		"sepal length (cm)", "sepal width (cm)", "petal length (cm)", "petal width (cm)", "species",
	}, ds.Names())

	typ, err := ds.ColumnType(0)
	require.NoError(t, err)
	assert.Equal(t, datatable.TypeFloat, typ)
	typ, err = ds.ColumnType(4)
	require.NoError(t, err)
	assert.Equal(t, datatable.TypeString, typ)

	_, err = loader.Load(context.Background(), loader.Sample("titanic"))
	assert.ErrorIs(t, err, datatable.ErrMalformedInput)
}

func TestCSV(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		names []string
		types []datatable.DataType
		sep   string
	}{
		{
			name:  "comma",
			data:  "a,b,c\n1,2.5,x\n2,,y\n",
			names: []string{"a", "b", "c"},
			types: []datatable.DataType{datatable.TypeInt, datatable.TypeFloat, datatable.TypeString},
			sep:   "comma",
		},
		{
			name:  "semicolon with mixed column",
			data:  "id;value\n1;3\n2;n/a\n",
			names: []string{"id", "value"},
			types: []datatable.DataType{datatable.TypeInt, datatable.TypeString},
			sep:   "semicolon",
		},
		{
			name:  "tab with byte order mark",
			data:  "\xef\xbb\xbfx\ty\n1.5\tred\n",
			names: []string{"x", "y"},
			types: []datatable.DataType{datatable.TypeFloat, datatable.TypeString},
			sep:   "tab",
		},
		{
			name:  "all empty column",
			data:  "a,b\n1,\n2,\n",
			names: []string{"a", "b"},
			types: []datatable.DataType{datatable.TypeInt, datatable.TypeFloat},
			sep:   "comma",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := loader.Load(context.Background(), loader.CSV([]byte(tt.data)))
			require.NoError(t, err)
			assert.Equal(t, tt.names, ds.Names())
			for i, want := range tt.types {
				got, err := ds.ColumnType(i)
				require.NoError(t, err)
				assert.Equal(t, want, got, tt.names[i])
			}
			assert.Equal(t, tt.sep, ds.Metadata()["separator"])
		})
	}
}

func TestCSV_EmptyCellsAreNull(t *testing.T) {
	ds, err := loader.Load(context.Background(), loader.CSV([]byte("n,s\n1,a\n,\n3,c\n")))
	require.NoError(t, err)

	row, err := ds.Row(1)
	require.NoError(t, err)
	assert.True(t, row[0].IsNull)
	assert.True(t, row[1].IsNull)
}

func TestCSV_MissingMarkers(t *testing.T) {
	ds, err := loader.Load(context.Background(), loader.CSV([]byte("x,y\n1,a\nNA,b\n3,c\n")))
	require.NoError(t, err)

	typ, err := ds.ColumnType(0)
	require.NoError(t, err)
	assert.Equal(t, datatable.TypeInt, typ)
	row, err := ds.Row(1)
	require.NoError(t, err)
	assert.True(t, row[0].IsNull)
	assert.False(t, row[1].IsNull)

	for _, marker := range []string{"N/A", "null", "None", "#N/A", "nan", "NULL", "<NA>"} {
		t.Run(marker, func(t *testing.T) {
			ds, err := loader.Load(context.Background(), loader.CSV([]byte("v,s\n1.5,"+marker+"\n"+marker+",b\n2.5,c\n")))
			require.NoError(t, err)

			typ, err := ds.ColumnType(0)
			require.NoError(t, err)
			assert.Equal(t, datatable.TypeFloat, typ)
			xs, err := ds.Float64s("v")
			require.NoError(t, err)
			assert.Equal(t, 1.5, xs[0])
			assert.True(t, math.IsNaN(xs[1]))

			row, err := ds.Row(0)
			require.NoError(t, err)
			assert.True(t, row[1].IsNull, "string cells with the marker are null too")
		})
	}

	assert.True(t, loader.IsMissing("NA"))
	assert.False(t, loader.IsMissing("na "))
	assert.False(t, loader.IsMissing("0"))
}

func TestCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"ragged rows", "a,b\n1,2\n3\n", datatable.ErrMalformedInput},
		{"duplicate header", "a,a\n1,2\n", datatable.ErrMalformedInput},
		{"header only", "a,b\n", datatable.ErrEmptyDataset},
		{"nothing", "", datatable.ErrMalformedInput},
		{"bad quoting", "a,b\n\"1,2\n", datatable.ErrMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(context.Background(), loader.CSV([]byte(tt.data)))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDetectSeparator(t *testing.T) {
	assert.Equal(t, ';', loader.DetectSeparator([]byte("a;b;c\n1;2;3")))
	assert.Equal(t, '|', loader.DetectSeparator([]byte("a|b\n")))
	assert.Equal(t, ',', loader.DetectSeparator([]byte("single\n1\n")))
	assert.Equal(t, ',', loader.DetectSeparator(nil))
}

func TestJSON(t *testing.T) {
	data := `[
		{"name": "a", "qty": 1, "price": 2.5, "ok": true},
		{"qty": 2, "name": "b", "price": 3, "ok": false, "extra": {"k": 1}},
		{"name": null, "qty": 3, "price": null}
	]`
	ds, err := loader.Load(context.Background(), loader.JSON([]byte(data)))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "qty", "price", "ok", "extra"}, ds.Names())
	assert.Equal(t, 3, ds.RowCount())

	wantTypes := []datatable.DataType{
		datatable.TypeString, datatable.TypeInt, datatable.TypeFloat, datatable.TypeBool, datatable.TypeString,
	}
	for i, want := range wantTypes {
		got, err := ds.ColumnType(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	extra, err := ds.Values("extra")
	require.NoError(t, err)
	assert.True(t, extra[0].IsNull)
	assert.JSONEq(t, `{"k":1}`, extra[1].Formatted)
}

func TestJSON_SingleObjectAndErrors(t *testing.T) {
	ds, err := loader.Load(context.Background(), loader.JSON([]byte(`{"a": 1, "b": "x"}`)))
	require.NoError(t, err)
	assert.Equal(t, 1, ds.RowCount())

	_, err = loader.Load(context.Background(), loader.JSON([]byte(`[]`)))
	assert.ErrorIs(t, err, datatable.ErrEmptyDataset)

	_, err = loader.Load(context.Background(), loader.JSON([]byte(`[1, 2]`)))
	assert.ErrorIs(t, err, datatable.ErrMalformedInput)

	_, err = loader.Load(context.Background(), loader.JSON([]byte(`"text"`)))
	assert.ErrorIs(t, err, datatable.ErrMalformedInput)
}

func writeParquet(t *testing.T, ds *datatable.Dataset) []byte {
	t.Helper()
	table := ds.Table()
	defer table.Release()

	var buf bytes.Buffer
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	w, err := pqarrow.NewFileWriter(table.Schema(), &buf, props, pqarrow.DefaultWriterProps())
	require.NoError(t, err)
	require.NoError(t, w.WriteTable(table, table.NumRows()))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestParquet(t *testing.T) {
	want, err := datatable.FromColumns(nil,
		datatable.NamedColumn{Name: "x", Data: datatable.Float64Column([]float64{1, 2, 3})},
		datatable.NamedColumn{Name: "label", Data: datatable.StringColumn([]string{"a", "b", "c"}, nil)},
	)
	require.NoError(t, err)

	ds, err := loader.Load(context.Background(), loader.Parquet(writeParquet(t, want)))
	require.NoError(t, err)
	assert.Equal(t, want.Names(), ds.Names())
	assert.Equal(t, want.Fingerprint(), ds.Fingerprint())

	_, err = loader.Load(context.Background(), loader.Parquet([]byte("not parquet")))
	assert.ErrorIs(t, err, datatable.ErrMalformedInput)
}

func TestFile(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("a,b\n1,x\n"), 0o644))
	ds, err := loader.Load(context.Background(), loader.File(csvPath))
	require.NoError(t, err)
	assert.Equal(t, "data.csv", ds.Metadata()["source"])

	jsonPath := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"a": 1}]`), 0o644))
	ds, err = loader.Load(context.Background(), loader.File(jsonPath))
	require.NoError(t, err)
	assert.Equal(t, 1, ds.RowCount())

	profilePath := filepath.Join(dir, "config.share")
	profile := `{"shareCredentialsVersion": 1, "endpoint": "https://example.com/delta-sharing/", "bearerToken": "t"}`
	require.NoError(t, os.WriteFile(profilePath, []byte(profile), 0o644))
	assert.Equal(t, loader.FileTypeDeltaSharingProfile, loader.DetectFileType(profilePath, []byte(profile)))
	_, err = loader.Load(context.Background(), loader.File(profilePath))
	assert.ErrorIs(t, err, datatable.ErrMalformedInput)

	_, err = loader.Load(context.Background(), loader.File(filepath.Join(dir, "data.xlsx")))
	assert.Error(t, err)

	otherPath := filepath.Join(dir, "data.xlsx")
	require.NoError(t, os.WriteFile(otherPath, []byte("x"), 0o644))
	_, err = loader.Load(context.Background(), loader.File(otherPath))
	assert.ErrorIs(t, err, datatable.ErrMalformedInput)
}

func TestDeltaSharing_TableName(t *testing.T) {
	_, err := loader.Load(context.Background(), loader.DeltaSharing("{}", "share.table"))
	assert.ErrorIs(t, err, datatable.ErrMalformedInput)
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := loader.Load(ctx, loader.Sample(sample.Iris))
	assert.ErrorIs(t, err, context.Canceled)
}
