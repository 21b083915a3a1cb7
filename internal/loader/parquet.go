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

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/magpierre/dsb-eda/datatable"
)

// ParquetSource reads a Parquet file held in memory.
type ParquetSource struct {
	Data []byte
	Name string
}

// Parquet returns a source for Parquet content.
func Parquet(data []byte) ParquetSource { return ParquetSource{Data: data, Name: "parquet"} }

func (s ParquetSource) String() string { return s.Name }

// Open implements Source.
func (s ParquetSource) Open(ctx context.Context) (*datatable.Dataset, error) {
	mem := memory.NewGoAllocator()

	pf, err := file.NewParquetReader(bytes.NewReader(s.Data), file.WithReadProps(parquet.NewReaderProperties(mem)))
	if err != nil {
		return nil, datatable.Errorf(datatable.ErrMalformedInput, "parquet: %v", err)
	}
	defer pf.Close()

	arrowReader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, datatable.Errorf(datatable.ErrMalformedInput, "parquet: %v", err)
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, datatable.Errorf(datatable.ErrMalformedInput, "parquet: %v", err)
	}
	defer table.Release()

	return datatable.FromTable(table, datatable.Metadata{"source": s.String()})
}
