package explore

import (
	"errors"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/chart"
	"github.com/magpierre/dsb-eda/internal/filter"
	"github.com/magpierre/dsb-eda/internal/schema"
	"github.com/magpierre/dsb-eda/internal/stats"
)

// ViewRequest is everything one screen refresh asks of the engine.
type ViewRequest struct {
	// Filter restricts rows by categorical membership; nil keeps all rows.
	Filter *filter.Spec `json:"filter,omitempty" yaml:"filter,omitempty"`

	// Filters adds membership selections on further columns. A row must be
	// in every one.
	Filters []filter.Spec `json:"filters,omitempty" yaml:"filters,omitempty"`

	// Query further restricts rows with a free-text search.
	Query string `json:"query,omitempty" yaml:"query,omitempty"`

	// Stats asks for the summary table and the correlation matrix.
	Stats bool `json:"stats,omitempty" yaml:"stats,omitempty"`

	Charts []chart.Request `json:"charts,omitempty" yaml:"charts,omitempty"`
}

// ChartResult is the outcome of one chart request. A failed request does not
// fail the view.
type ChartResult struct {
	Request chart.Request `json:"request"`
	Spec    *chart.Spec   `json:"spec,omitempty"`
	Err     error         `json:"-"`
	Error   string        `json:"error,omitempty"`
}

// View is the result of one cycle.
type View struct {
	Data        *datatable.Dataset `json:"-"`
	SourceRows  int                `json:"source_rows"`
	Rows        int                `json:"rows"`
	Summary     *stats.Summary     `json:"summary,omitempty"`
	Correlation *stats.Matrix      `json:"correlation,omitempty"`
	Charts      []ChartResult      `json:"charts,omitempty"`
}

// View runs one cycle: filter, search, statistics and charts over the
// current dataset. The membership filters and the query are combined into
// one predicate. Filter and search failures fail the view; statistics are
// skipped when there is no numeric column.
func (s *Session) View(req ViewRequest) (*View, error) {
	ds, sch, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.viewOn(ds, sch, req)
}

// viewOn runs a cycle against one dataset and schema pair, so a concurrent
// Load cannot mix two datasets within a view.
func (s *Session) viewOn(base *datatable.Dataset, sch schema.Schema, req ViewRequest) (*View, error) {
	specs := req.Filters
	if req.Filter != nil {
		specs = append([]filter.Spec{*req.Filter}, specs...)
	}
	ds, err := s.selectOn(base, sch, specs, req.Query)
	if err != nil {
		return nil, err
	}

	v := &View{Data: ds, SourceRows: base.RowCount(), Rows: ds.RowCount()}

	if req.Stats {
		v.Summary, err = s.describeOn(ds, sch)
		if err != nil && !errors.Is(err, datatable.ErrNoNumericColumns) {
			return nil, err
		}
		v.Correlation, err = s.correlationOn(ds, sch, nil)
		if err != nil && !errors.Is(err, datatable.ErrNoNumericColumns) {
			return nil, err
		}
	}

	for _, creq := range req.Charts {
		res := ChartResult{Request: creq}
		res.Spec, res.Err = s.dispatcher.Dispatch(sch, ds, creq)
		if res.Err != nil {
			res.Error = res.Err.Error()
			s.logger.Printf("session %s: chart %s: %v", s.id, creq.Kind, res.Err)
		}
		v.Charts = append(v.Charts, res)
	}
	return v, nil
}
