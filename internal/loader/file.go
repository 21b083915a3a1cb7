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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magpierre/dsb-eda/datatable"
)

// FileType represents the type of data file
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeCSV
	FileTypeParquet
	FileTypeJSON
	FileTypeDeltaSharingProfile
)

func (t FileType) String() string {
	switch t {
	case FileTypeCSV:
		return "csv"
	case FileTypeParquet:
		return "parquet"
	case FileTypeJSON:
		return "json"
	case FileTypeDeltaSharingProfile:
		return "delta-sharing profile"
	default:
		return "unknown"
	}
}

// DetectFileType determines the type of file based on extension and content.
func DetectFileType(path string, content []byte) FileType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return FileTypeCSV
	case ".parquet":
		return FileTypeParquet
	case ".json", ".share", ".txt":
		if IsDeltaSharingProfile(content) {
			return FileTypeDeltaSharingProfile
		}
		if strings.ToLower(filepath.Ext(path)) == ".txt" {
			return FileTypeCSV
		}
		return FileTypeJSON
	default:
		return FileTypeUnknown
	}
}

// FileSource reads a data file from disk, choosing the format by extension.
type FileSource struct {
	Path string
}

// File returns a source for a file on disk.
func File(path string) FileSource { return FileSource{Path: path} }

func (s FileSource) String() string { return filepath.Base(s.Path) }

// Open implements Source.
func (s FileSource) Open(ctx context.Context) (*datatable.Dataset, error) {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}

	var src Source
	switch ft := DetectFileType(s.Path, content); ft {
	case FileTypeCSV:
		src = CSVSource{Data: content, Name: s.String()}
	case FileTypeParquet:
		src = ParquetSource{Data: content, Name: s.String()}
	case FileTypeJSON:
		src = JSONSource{Data: content, Name: s.String()}
	case FileTypeDeltaSharingProfile:
		return nil, datatable.Errorf(datatable.ErrMalformedInput, "%s is a Delta Sharing profile; load a table from it instead", s.String())
	default:
		return nil, datatable.Errorf(datatable.ErrMalformedInput, "%s: unsupported file type", s.String())
	}
	return src.Open(ctx)
}
