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

// Package loader turns external sources (packaged samples, CSV, JSON and
// Parquet content, files on disk, Delta Sharing tables) into datasets.
package loader

import (
	"context"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/sample"
)

// Source produces a dataset.
type Source interface {
	// Open reads the source. Implementations return ErrMalformedInput for
	// content that is not a table.
	Open(ctx context.Context) (*datatable.Dataset, error)

	// String names the source for logs and metadata.
	String() string
}

// Load opens src and checks the result has at least one column and one row.
func Load(ctx context.Context, src Source) (*datatable.Dataset, error) {
	if src == nil {
		return nil, datatable.Errorf(datatable.ErrMalformedInput, "no source")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	if ds.ColumnCount() == 0 {
		return nil, datatable.Errorf(datatable.ErrEmptyDataset, "%s has no columns", src)
	}
	if ds.RowCount() == 0 {
		return nil, datatable.Errorf(datatable.ErrEmptyDataset, "%s has no rows", src)
	}
	return ds, nil
}

// SampleSource loads a packaged dataset.
type SampleSource struct {
	Name string
}

// Sample returns the source for a packaged dataset such as sample.Iris.
func Sample(name string) SampleSource { return SampleSource{Name: name} }

func (s SampleSource) String() string { return "sample:" + s.Name }

// Open implements Source.
func (s SampleSource) Open(ctx context.Context) (*datatable.Dataset, error) {
	data, err := sample.CSV(s.Name)
	if err != nil {
		return nil, err
	}
	return parseCSV(data, ',', datatable.Metadata{"source": s.String()})
}
