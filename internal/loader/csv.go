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
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/magpierre/dsb-eda/datatable"
)

// CSVSource parses delimited text with a header row.
type CSVSource struct {
	Data []byte
	Name string

	// Comma forces the separator; zero detects it from the header line.
	Comma rune
}

// CSV returns a source for delimited content.
func CSV(data []byte) CSVSource { return CSVSource{Data: data, Name: "csv"} }

func (s CSVSource) String() string { return s.Name }

// Open implements Source.
func (s CSVSource) Open(ctx context.Context) (*datatable.Dataset, error) {
	sep := s.Comma
	if sep == 0 {
		sep = DetectSeparator(s.Data)
	}
	return parseCSV(s.Data, sep, datatable.Metadata{"source": s.String(), "separator": SeparatorName(sep)})
}

// DetectSeparator picks the most frequent of comma, semicolon, tab and pipe
// on the first line, defaulting to comma.
func DetectSeparator(data []byte) rune {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		return ','
	}
	firstLine := scanner.Text()

	detected, maxCount := ',', 0
	// fixed order keeps ties deterministic
	for _, sep := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(firstLine, string(sep)); n > maxCount {
			detected, maxCount = sep, n
		}
	}
	return detected
}

// SeparatorName returns a human-readable name for the separator.
func SeparatorName(sep rune) string {
	switch sep {
	case ',':
		return "comma"
	case ';':
		return "semicolon"
	case '\t':
		return "tab"
	case '|':
		return "pipe"
	default:
		return string(sep)
	}
}

func parseCSV(data []byte, sep rune, meta datatable.Metadata) (*datatable.Dataset, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sep
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, datatable.Errorf(datatable.ErrMalformedInput, "line %d: %v", perr.Line, perr.Err)
		}
		return nil, datatable.Errorf(datatable.ErrMalformedInput, "%v", err)
	}
	if len(records) == 0 {
		return nil, datatable.Errorf(datatable.ErrMalformedInput, "no header row")
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	rows := records[1:]
	if len(rows) == 0 {
		return nil, datatable.Errorf(datatable.ErrEmptyDataset, "header only, no rows")
	}

	cols := make([]datatable.NamedColumn, len(header))
	for j, name := range header {
		cells := make([]string, len(rows))
		for i, row := range rows {
			cells[i] = strings.TrimSpace(row[j])
		}
		cols[j] = datatable.NamedColumn{Name: name, Data: inferColumn(cells)}
	}
	return datatable.FromColumns(meta, cols...)
}

// naTokens are the cell texts read as missing, matching the markers common
// spreadsheet and dataframe exports write for absent values.
var naTokens = map[string]bool{
	"":         true,
	"#N/A":     true,
	"#N/A N/A": true,
	"#NA":      true,
	"-1.#IND":  true,
	"-1.#QNAN": true,
	"-NaN":     true,
	"-nan":     true,
	"1.#IND":   true,
	"1.#QNAN":  true,
	"<NA>":     true,
	"N/A":      true,
	"NA":       true,
	"NULL":     true,
	"NaN":      true,
	"None":     true,
	"n/a":      true,
	"nan":      true,
	"null":     true,
}

// IsMissing reports whether a trimmed cell reads as a missing value.
func IsMissing(cell string) bool {
	return naTokens[cell]
}

// inferColumn types a text column: int64 when every present cell is an
// integer, float64 when every one is a real number, string otherwise.
// Missing cells (see IsMissing) are nulls; a column with no present cell is
// float64.
func inferColumn(cells []string) arrow.Array {
	allInt, allFloat, present := true, true, false
	for _, c := range cells {
		if IsMissing(c) {
			continue
		}
		present = true
		if allInt {
			if _, err := strconv.ParseInt(c, 10, 64); err != nil {
				allInt = false
			}
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			allFloat = false
			break
		}
	}

	switch {
	case allFloat && allInt && present:
		ints := make([]int64, len(cells))
		valid := make([]bool, len(cells))
		for i, c := range cells {
			if IsMissing(c) {
				continue
			}
			ints[i], _ = strconv.ParseInt(c, 10, 64)
			valid[i] = true
		}
		return nullableInt64s(ints, valid)
	case allFloat:
		floats := make([]float64, len(cells))
		for i, c := range cells {
			if IsMissing(c) {
				floats[i] = nan
				continue
			}
			floats[i], _ = strconv.ParseFloat(c, 64)
		}
		return datatable.Float64Column(floats)
	default:
		valid := make([]bool, len(cells))
		for i, c := range cells {
			valid[i] = !IsMissing(c)
		}
		return datatable.StringColumn(cells, valid)
	}
}
