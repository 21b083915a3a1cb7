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

package loader

import (
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/goccy/go-json"

	"github.com/magpierre/dsb-eda/datatable"
)

// JSONSource parses an array of objects, or a single object, into rows.
// Columns appear in order of first appearance across records.
type JSONSource struct {
	Data []byte
	Name string
}

// JSON returns a source for JSON records.
func JSON(data []byte) JSONSource { return JSONSource{Data: data, Name: "json"} }

func (s JSONSource) String() string { return s.Name }

// Open implements Source.
func (s JSONSource) Open(ctx context.Context) (*datatable.Dataset, error) {
	keys, records, err := readRecords(s.Data)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, datatable.Errorf(datatable.ErrEmptyDataset, "no records")
	}

	cols := make([]datatable.NamedColumn, len(keys))
	for j, key := range keys {
		cells := make([]any, len(records))
		for i, rec := range records {
			cells[i] = rec[key]
		}
		col, err := jsonColumn(cells)
		if err != nil {
			return nil, datatable.Errorf(datatable.ErrMalformedInput, "field %q: %v", key, err)
		}
		cols[j] = datatable.NamedColumn{Name: key, Data: col}
	}
	return datatable.FromColumns(datatable.Metadata{"source": s.String()}, cols...)
}

func readRecords(data []byte) ([]string, []map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var keys []string
	seen := make(map[string]bool)
	var records []map[string]any

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, datatable.Errorf(datatable.ErrMalformedInput, "json: %v", err)
	}
	switch tok {
	case json.Delim('{'):
		rec, err := readObjectBody(dec, &keys, seen)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
	case json.Delim('['):
		for dec.More() {
			t, err := dec.Token()
			if err != nil {
				return nil, nil, datatable.Errorf(datatable.ErrMalformedInput, "json: %v", err)
			}
			if t != json.Delim('{') {
				return nil, nil, datatable.Errorf(datatable.ErrMalformedInput, "json: record %d is not an object", len(records))
			}
			rec, err := readObjectBody(dec, &keys, seen)
			if err != nil {
				return nil, nil, err
			}
			records = append(records, rec)
		}
		if _, err := dec.Token(); err != nil {
			return nil, nil, datatable.Errorf(datatable.ErrMalformedInput, "json: %v", err)
		}
	default:
		return nil, nil, datatable.Errorf(datatable.ErrMalformedInput, "json: want an array of objects")
	}
	return keys, records, nil
}

// readObjectBody reads key/value pairs up to and including the closing brace.
func readObjectBody(dec *json.Decoder, keys *[]string, seen map[string]bool) (map[string]any, error) {
	rec := make(map[string]any)
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return nil, datatable.Errorf(datatable.ErrMalformedInput, "json: %v", err)
		}
		key, ok := t.(string)
		if !ok {
			return nil, datatable.Errorf(datatable.ErrMalformedInput, "json: object key %v is not a string", t)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, datatable.Errorf(datatable.ErrMalformedInput, "json: field %q: %v", key, err)
		}
		rec[key] = v
		if !seen[key] {
			seen[key] = true
			*keys = append(*keys, key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, datatable.Errorf(datatable.ErrMalformedInput, "json: %v", err)
	}
	return rec, nil
}

// jsonColumn types decoded values: int64 when every present value is an
// integral number, float64 when every one is a number, bool when every one
// is a boolean, string otherwise. Missing fields and nulls are nulls.
func jsonColumn(cells []any) (arrow.Array, error) {
	allInt, allNum, allBool, present := true, true, true, false
	for _, c := range cells {
		switch v := c.(type) {
		case nil:
			continue
		case json.Number:
			present = true
			allBool = false
			if _, err := v.Int64(); err != nil {
				allInt = false
			}
		case bool:
			present = true
			allInt, allNum = false, false
		default:
			present = true
			allInt, allNum, allBool = false, false, false
		}
	}

	switch {
	case !present || (allNum && !allInt):
		floats := make([]float64, len(cells))
		for i, c := range cells {
			floats[i] = nan
			if n, ok := c.(json.Number); ok {
				f, err := n.Float64()
				if err != nil {
					return nil, err
				}
				floats[i] = f
			}
		}
		return datatable.Float64Column(floats), nil
	case allNum && allInt:
		ints := make([]int64, len(cells))
		valid := make([]bool, len(cells))
		for i, c := range cells {
			if n, ok := c.(json.Number); ok {
				ints[i], _ = n.Int64()
				valid[i] = true
			}
		}
		return nullableInt64s(ints, valid), nil
	case allBool:
		bools := make([]bool, len(cells))
		valid := make([]bool, len(cells))
		for i, c := range cells {
			if b, ok := c.(bool); ok {
				bools[i], valid[i] = b, true
			}
		}
		return datatable.BoolColumn(bools, valid), nil
	default:
		strs := make([]string, len(cells))
		valid := make([]bool, len(cells))
		for i, c := range cells {
			if c == nil {
				continue
			}
			valid[i] = true
			switch v := c.(type) {
			case string:
				strs[i] = v
			case json.Number:
				strs[i] = v.String()
			case map[string]any, []any:
				raw, err := json.Marshal(v)
				if err != nil {
					return nil, err
				}
				strs[i] = string(raw)
			default:
				strs[i] = fmt.Sprint(v)
			}
		}
		return datatable.StringColumn(strs, valid), nil
	}
}
