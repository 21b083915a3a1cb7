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
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	delta_sharing "github.com/magpierre/go_delta_sharing_client"

	"github.com/magpierre/dsb-eda/datatable"
)

// DeltaSharingSource reads one data file of a Delta Sharing table.
type DeltaSharingSource struct {
	// Profile is the content of a Delta Sharing profile file.
	Profile string

	// Table is "share.schema.table".
	Table string

	// FileID selects a data file; empty means the first file of the table.
	FileID string

	// Timeout bounds each server call; zero means 60 seconds.
	Timeout time.Duration

	// Columns keeps only the named columns when set. Names that are not in
	// the table are ignored, but at least one must match.
	Columns []string

	// Limit keeps the first Limit rows when positive.
	Limit int
}

// DeltaSharing returns a source for a shared table.
func DeltaSharing(profile, table string) DeltaSharingSource {
	return DeltaSharingSource{Profile: profile, Table: table}
}

func (s DeltaSharingSource) String() string { return "delta-sharing:" + s.Table }

// Open implements Source.
func (s DeltaSharingSource) Open(ctx context.Context) (*datatable.Dataset, error) {
	share, schemaName, tableName, err := splitTableName(s.Table)
	if err != nil {
		return nil, err
	}

	client, err := delta_sharing.NewSharingClientV2FromString(s.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to create Delta Sharing client: %w", err)
	}

	listCtx, cancel := s.timeoutContext(ctx)
	defer cancel()
	tables, _, err := client.ListAllTables_V2(listCtx, 0, "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list all tables: %w", err)
	}

	var found *delta_sharing.Table
	for i := range tables {
		t := &tables[i]
		if t.Share == share && t.Schema == schemaName && t.Name == tableName {
			found = t
			break
		}
	}
	if found == nil {
		return nil, datatable.Errorf(datatable.ErrMalformedInput, "table %s not found in share", s.Table)
	}
	table := *found

	filesCtx, cancelFiles := s.timeoutContext(ctx)
	defer cancelFiles()
	resp, err := client.ListFilesInTable(filesCtx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	if len(resp.AddFiles) == 0 {
		return nil, datatable.Errorf(datatable.ErrEmptyDataset, "table %s has no files", s.Table)
	}

	fileID := s.FileID
	if fileID == "" {
		fileID = resp.AddFiles[0].Id
	}

	loadCtx, cancelLoad := s.timeoutContext(ctx)
	defer cancelLoad()
	arrowTable, err := delta_sharing.LoadArrowTable(loadCtx, client, table, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load table data: %w", err)
	}
	defer arrowTable.Release()

	ds, err := datatable.FromTable(arrowTable, datatable.Metadata{
		"source": s.String(),
		"file":   fileID,
	})
	if err != nil {
		return nil, err
	}
	return s.applyQueryOptions(ds)
}

// applyQueryOptions applies column selection and row limiting.
func (s DeltaSharingSource) applyQueryOptions(ds *datatable.Dataset) (*datatable.Dataset, error) {
	if len(s.Columns) > 0 {
		var keep []string
		for _, name := range s.Columns {
			if ds.Has(name) {
				keep = append(keep, name)
			}
		}
		if len(keep) == 0 {
			return nil, datatable.Errorf(datatable.ErrInvalidColumn, "no matching columns found in %s", s.Table)
		}
		var err error
		if ds, err = ds.Select(keep...); err != nil {
			return nil, err
		}
	}
	if s.Limit > 0 {
		ds = ds.Head(s.Limit)
	}
	return ds, nil
}

// DeltaSharingTables lists every table the profile can read as
// "share.schema.table", sorted.
func DeltaSharingTables(ctx context.Context, profile string, timeout time.Duration) ([]string, error) {
	client, err := delta_sharing.NewSharingClientV2FromString(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to create Delta Sharing client: %w", err)
	}

	listCtx, cancel := DeltaSharingSource{Timeout: timeout}.timeoutContext(ctx)
	defer cancel()
	tables, _, err := client.ListAllTables_V2(listCtx, 0, "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list all tables: %w", err)
	}

	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Share + "." + t.Schema + "." + t.Name
	}
	sort.Strings(names)
	return names, nil
}

func (s DeltaSharingSource) timeoutContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func splitTableName(name string) (share, schema, table string, err error) {
	parts := strings.Split(name, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", datatable.Errorf(datatable.ErrMalformedInput, "table %q: want share.schema.table", name)
	}
	return parts[0], parts[1], parts[2], nil
}

// IsDeltaSharingProfile reports whether content looks like a Delta Sharing
// profile: shareCredentialsVersion, endpoint and bearerToken are all set.
func IsDeltaSharingProfile(content []byte) bool {
	var profile map[string]interface{}
	if err := json.Unmarshal(content, &profile); err != nil {
		return false
	}
	_, hasVersion := profile["shareCredentialsVersion"]
	_, hasEndpoint := profile["endpoint"]
	_, hasBearerToken := profile["bearerToken"]
	return hasVersion && hasEndpoint && hasBearerToken
}
