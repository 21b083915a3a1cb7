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

package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/goccy/go-json"

	"github.com/magpierre/dsb-eda/datatable"
)

// Format represents the supported export formats
type Format int

const (
	FormatParquet Format = iota
	FormatCSV
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatParquet:
		return "parquet"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFormat accepts "csv", "json" or "parquet", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "parquet":
		return FormatParquet, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, datatable.Errorf(datatable.ErrExportFailed, "unknown format %q", s)
}

// Write encodes ds to w in the given format.
func Write(w io.Writer, ds *datatable.Dataset, format Format) error {
	switch format {
	case FormatParquet:
		return Parquet(w, ds)
	case FormatCSV:
		return CSV(w, ds)
	case FormatJSON:
		return JSON(w, ds)
	}
	return datatable.Errorf(datatable.ErrExportFailed, "unknown format %d", int(format))
}

// Parquet writes ds as a Snappy-compressed Parquet file.
func Parquet(w io.Writer, ds *datatable.Dataset) error {
	table := ds.Table()
	defer table.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(table.Schema(), w, props, arrowProps)
	if err != nil {
		return datatable.Errorf(datatable.ErrExportFailed, "failed to create parquet writer: %v", err)
	}
	if err := writer.WriteTable(table, max(table.NumRows(), 1)); err != nil {
		writer.Close()
		return datatable.Errorf(datatable.ErrExportFailed, "failed to write table to parquet: %v", err)
	}
	if err := writer.Close(); err != nil {
		return datatable.Errorf(datatable.ErrExportFailed, "failed to close parquet writer: %v", err)
	}
	return nil
}

// CSV writes a header row followed by one record per row. Nulls are empty
// fields.
func CSV(w io.Writer, ds *datatable.Dataset) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(ds.Names()); err != nil {
		return datatable.Errorf(datatable.ErrExportFailed, "failed to write CSV header: %v", err)
	}

	record := make([]string, ds.ColumnCount())
	for i := 0; i < ds.RowCount(); i++ {
		row, err := ds.Row(i)
		if err != nil {
			return err
		}
		for j, v := range row {
			record[j] = v.Formatted
		}
		if err := writer.Write(record); err != nil {
			return datatable.Errorf(datatable.ErrExportFailed, "failed to write CSV row: %v", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return datatable.Errorf(datatable.ErrExportFailed, "failed to flush CSV: %v", err)
	}
	return nil
}

// JSON writes an indented array of objects whose keys follow column order.
func JSON(w io.Writer, ds *datatable.Dataset) error {
	names := ds.Names()
	records := make([]record, ds.RowCount())
	for i := range records {
		row, err := ds.Row(i)
		if err != nil {
			return err
		}
		records[i] = record{names: names, values: row}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return datatable.Errorf(datatable.ErrExportFailed, "failed to encode JSON: %v", err)
	}
	return nil
}

type record struct {
	names  []string
	values []datatable.Value
}

func (r record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		val, err := json.Marshal(typedValue(r.values[i]))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// typedValue returns the typed value for JSON export (preserves types)
func typedValue(v datatable.Value) interface{} {
	if v.IsNull {
		return nil
	}
	switch raw := v.Raw.(type) {
	case float64:
		if math.IsNaN(raw) || math.IsInf(raw, 0) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(raw)) || math.IsInf(float64(raw), 0) {
			return nil
		}
	case time.Time, []byte:
		return v.Formatted
	}
	return v.Raw
}
