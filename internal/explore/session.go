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

// Package explore ties the engine together for one caller: it owns the
// current dataset, its schema, the memoization cache and the chart
// dispatcher.
package explore

import (
	"context"
	"io"
	"log"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/cache"
	"github.com/magpierre/dsb-eda/internal/chart"
	"github.com/magpierre/dsb-eda/internal/config"
	"github.com/magpierre/dsb-eda/internal/derive"
	"github.com/magpierre/dsb-eda/internal/export"
	"github.com/magpierre/dsb-eda/internal/filter"
	"github.com/magpierre/dsb-eda/internal/loader"
	"github.com/magpierre/dsb-eda/internal/schema"
	"github.com/magpierre/dsb-eda/internal/stats"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. Log lines carry the session id.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProfile applies a configuration profile: exposed chart kinds, row cap,
// line ordering and preview size.
func WithProfile(p config.Profile) Option {
	return func(s *Session) { s.profile = &p }
}

// Session is one exploration context. It is safe for concurrent use; a
// Load swaps the dataset atomically and drops every cached result.
type Session struct {
	id      string
	logger  *log.Logger
	profile *config.Profile

	cache      *cache.Cache
	dispatcher *chart.Dispatcher
	preview    int

	mu  sync.RWMutex
	ds  *datatable.Dataset
	sch schema.Schema
}

// New creates a session with no dataset loaded.
func New(opts ...Option) (*Session, error) {
	s := &Session{
		id:      uuid.NewString(),
		logger:  log.New(io.Discard, "", 0),
		cache:   cache.New(),
		preview: config.DefaultPreviewRows,
	}
	for _, opt := range opts {
		opt(s)
	}

	chartOpts := []chart.Option{chart.WithLogger(s.logger)}
	if s.profile != nil {
		profileOpts, err := s.profile.DispatcherOptions(s.logger)
		if err != nil {
			return nil, err
		}
		chartOpts = profileOpts
		if s.profile.PreviewRows > 0 {
			s.preview = s.profile.PreviewRows
		}
	}
	chartOpts = append(chartOpts, chart.WithCache(s.cache))
	s.dispatcher = chart.NewDispatcher(chartOpts...)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Dispatcher returns the session's chart dispatcher.
func (s *Session) Dispatcher() *chart.Dispatcher { return s.dispatcher }

// CacheStats reports cache activity since the session started.
func (s *Session) CacheStats() cache.Stats { return s.cache.Stats() }

// Load reads src and makes it the current dataset.
func (s *Session) Load(ctx context.Context, src loader.Source) error {
	ds, err := loader.Load(ctx, src)
	if err != nil {
		s.logger.Printf("session %s: load %s failed: %v", s.id, src, err)
		return err
	}
	return s.SetDataset(ds)
}

// SetDataset classifies ds and makes it the current dataset. Cached results
// for the previous dataset are dropped.
func (s *Session) SetDataset(ds *datatable.Dataset) error {
	sch, err := schema.Classify(ds)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ds, s.sch = ds, sch
	s.cache.Reset()
	s.mu.Unlock()

	s.logger.Printf("session %s: loaded %d rows, %d numeric and %d categorical columns",
		s.id, ds.RowCount(), len(sch.Numeric()), len(sch.Categorical()))
	return nil
}

// current returns a consistent dataset and schema pair.
func (s *Session) current() (*datatable.Dataset, schema.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ds == nil {
		return nil, schema.Schema{}, datatable.Errorf(datatable.ErrEmptyDataset, "no dataset loaded")
	}
	return s.ds, s.sch, nil
}

// Dataset returns the current dataset.
func (s *Session) Dataset() (*datatable.Dataset, error) {
	ds, _, err := s.current()
	return ds, err
}

// Schema returns the classification of the current dataset.
func (s *Session) Schema() (schema.Schema, error) {
	_, sch, err := s.current()
	return sch, err
}

// Distinct lists the values of a categorical column in first-appearance
// order. Selecting all of them is the default filter.
func (s *Session) Distinct(column string) ([]string, error) {
	ds, sch, err := s.current()
	if err != nil {
		return nil, err
	}
	role, err := sch.Role(column)
	if err != nil {
		return nil, err
	}
	if role != datatable.RoleCategorical {
		return nil, datatable.Errorf(datatable.ErrInvalidColumn, "column %q is %s, want categorical", column, role)
	}
	return cache.Do(s.cache, cache.NewKey(ds.Fingerprint(), "distinct", column), func() ([]string, error) {
		return filter.DistinctValues(ds, column)
	})
}

// Filter applies spec to the current dataset. Results are memoized on the
// canonical value set, so reordered selections share one computation.
func (s *Session) Filter(spec *filter.Spec) (*datatable.Dataset, error) {
	ds, sch, err := s.current()
	if err != nil {
		return nil, err
	}
	if spec == nil {
		return ds, nil
	}
	params := append([]string{spec.Column}, spec.Canonical()...)
	return cache.Do(s.cache, cache.NewKey(ds.Fingerprint(), "filter", params...), func() (*datatable.Dataset, error) {
		return filter.Apply(ds, sch, spec)
	})
}

// Select keeps the rows of the current dataset that are in every membership
// spec and match query. The predicates are combined with AND and evaluated
// in one pass.
func (s *Session) Select(specs []filter.Spec, query string) (*datatable.Dataset, error) {
	ds, sch, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.selectOn(ds, sch, specs, query)
}

func (s *Session) selectOn(ds *datatable.Dataset, sch schema.Schema, specs []filter.Spec, query string) (*datatable.Dataset, error) {
	var preds []datatable.Filter
	var params []string

	// without categorical columns there is nothing to select on
	if len(sch.Categorical()) > 0 {
		for _, spec := range specs {
			role, err := sch.Role(spec.Column)
			if err != nil {
				return nil, datatable.Errorf(datatable.ErrInvalidColumn, "filter column %q not found", spec.Column)
			}
			if role != datatable.RoleCategorical {
				return nil, datatable.Errorf(datatable.ErrInvalidColumn, "filter column %q is %s, want categorical", spec.Column, role)
			}
			canonical := spec.Canonical()
			preds = append(preds, filter.NewMembership(spec))
			params = append(params, spec.Column, strconv.Itoa(len(canonical)))
			params = append(params, canonical...)
		}
	}

	q, err := filter.ParseQuery(query, ds.Names())
	if err != nil {
		return nil, err
	}
	if q != nil {
		preds = append(preds, q)
		params = append(params, "query", q.Description())
	}
	if len(preds) == 0 {
		return ds, nil
	}

	pred := filter.All(preds...)
	return cache.Do(s.cache, cache.NewKey(ds.Fingerprint(), "select", params...), func() (*datatable.Dataset, error) {
		s.logger.Printf("session %s: select %s", s.id, pred.Description())
		return filter.Evaluate(ds, pred)
	})
}

// Search keeps the rows of ds matching a free-text query such as
// `petal_length > 4 AND species = virginica`. A nil ds searches the
// current dataset.
func (s *Session) Search(ds *datatable.Dataset, query string) (*datatable.Dataset, error) {
	base, _, err := s.current()
	if err != nil {
		return nil, err
	}
	if ds == nil {
		ds = base
	}
	q, err := filter.ParseQuery(query, ds.Names())
	if err != nil {
		return nil, err
	}
	if q == nil {
		return ds, nil
	}
	return cache.Do(s.cache, cache.NewKey(ds.Fingerprint(), "search", q.Description()), func() (*datatable.Dataset, error) {
		return filter.Evaluate(ds, q)
	})
}

// Describe summarizes the numeric columns of ds, typically a filtered slice
// of the current dataset. A nil ds describes the current dataset.
func (s *Session) Describe(ds *datatable.Dataset) (*stats.Summary, error) {
	base, sch, err := s.current()
	if err != nil {
		return nil, err
	}
	if ds == nil {
		ds = base
	}
	return s.describeOn(ds, sch)
}

func (s *Session) describeOn(ds *datatable.Dataset, sch schema.Schema) (*stats.Summary, error) {
	return cache.Do(s.cache, cache.NewKey(ds.Fingerprint(), "describe"), func() (*stats.Summary, error) {
		return stats.Describe(ds, sch)
	})
}

// Correlation returns the Pearson matrix of cols over ds; empty cols means
// every numeric column. A nil ds uses the current dataset.
func (s *Session) Correlation(ds *datatable.Dataset, cols ...string) (*stats.Matrix, error) {
	base, sch, err := s.current()
	if err != nil {
		return nil, err
	}
	if ds == nil {
		ds = base
	}
	return s.correlationOn(ds, sch, cols)
}

func (s *Session) correlationOn(ds *datatable.Dataset, sch schema.Schema, cols []string) (*stats.Matrix, error) {
	if len(cols) == 0 {
		cols = sch.Numeric()
		if len(cols) == 0 {
			return nil, datatable.Errorf(datatable.ErrNoNumericColumns, "nothing to correlate")
		}
	}
	return cache.Do(s.cache, cache.NewKey(ds.Fingerprint(), "correlation", cols...), func() (*stats.Matrix, error) {
		return stats.Correlation(ds, sch, cols)
	})
}

// Dispatch resolves a chart request over ds. A nil ds uses the current
// dataset.
func (s *Session) Dispatch(ds *datatable.Dataset, req chart.Request) (*chart.Spec, error) {
	base, sch, err := s.current()
	if err != nil {
		return nil, err
	}
	if ds == nil {
		ds = base
	}
	return s.dispatcher.Dispatch(sch, ds, req)
}

// Preview returns the first n rows of the current dataset; n <= 0 uses the
// profile's preview size.
func (s *Session) Preview(n int) (*datatable.Dataset, error) {
	ds, _, err := s.current()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = s.preview
	}
	return ds.Head(n), nil
}

// Derive appends a computed numeric column to the current dataset and makes
// the result current.
func (s *Session) Derive(name, expr string) error {
	ds, sch, err := s.current()
	if err != nil {
		return err
	}
	out, err := derive.Apply(ds, sch, name, expr)
	if err != nil {
		return err
	}
	s.logger.Printf("session %s: derived column %q = %s", s.id, name, expr)
	return s.SetDataset(out)
}

// Export writes ds in the given format. A nil ds exports the current
// dataset.
func (s *Session) Export(w io.Writer, ds *datatable.Dataset, format export.Format) error {
	if ds == nil {
		var err error
		if ds, err = s.Dataset(); err != nil {
			return err
		}
	}
	return export.Write(w, ds, format)
}
