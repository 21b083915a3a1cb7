package chart

import (
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/cache"
	"github.com/magpierre/dsb-eda/internal/schema"
	"github.com/magpierre/dsb-eda/internal/stats"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithKinds restricts the chart kinds the dispatcher accepts.
func WithKinds(kinds ...Kind) Option {
	return func(d *Dispatcher) {
		d.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			d.kinds[k] = true
		}
	}
}

// WithRowCap sets the default row cap for point-based charts.
func WithRowCap(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.rowCap = n
		}
	}
}

// WithLineSort sets how line charts are ordered when the request does not say.
func WithLineSort(dir datatable.SortDirection) Option {
	return func(d *Dispatcher) { d.lineSort = dir }
}

// WithCache memoizes heatmap correlations.
func WithCache(c *cache.Cache) Option {
	return func(d *Dispatcher) { d.cache = c }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatcher turns Requests into Specs.
type Dispatcher struct {
	kinds    map[Kind]bool
	rowCap   int
	lineSort datatable.SortDirection
	cache    *cache.Cache
	logger   *log.Logger
}

// NewDispatcher creates a dispatcher accepting every kind with DefaultRowCap.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		rowCap: DefaultRowCap,
		logger: log.New(io.Discard, "", 0),
	}
	WithKinds(AllKinds...)(d)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Kinds returns the accepted chart kinds in canonical order.
func (d *Dispatcher) Kinds() []Kind {
	var out []Kind
	for _, k := range AllKinds {
		if d.kinds[k] {
			out = append(out, k)
		}
	}
	return out
}

// RowCap returns the default row cap.
func (d *Dispatcher) RowCap() int { return d.rowCap }

// Dispatch validates req against sch and resolves it over ds, which is the
// (possibly filtered) dataset sch classifies. ds is never modified.
func (d *Dispatcher) Dispatch(sch schema.Schema, ds *datatable.Dataset, req Request) (*Spec, error) {
	kind, err := ParseKind(string(req.Kind))
	if err != nil {
		return nil, err
	}
	if !d.kinds[kind] {
		return nil, datatable.Errorf(datatable.ErrUnsupportedRequest, "chart kind %s is not enabled", kind)
	}
	if ds == nil {
		return nil, datatable.Errorf(datatable.ErrEmptyDataset, "no dataset")
	}

	var spec *Spec
	switch kind {
	case Histogram:
		spec, err = d.histogram(sch, ds, req)
	case Box:
		spec, err = d.box(sch, ds, req)
	case Scatter:
		spec, err = d.scatter(sch, ds, req)
	case Line:
		spec, err = d.line(sch, ds, req)
	case Bar:
		spec, err = d.bar(sch, ds, req)
	case Heatmap:
		spec, err = d.heatmap(sch, ds, req)
	}
	if err != nil {
		return nil, err
	}

	spec.Kind = kind
	spec.SourceRows = ds.RowCount()
	spec.Rows = spec.Data.RowCount()
	spec.Empty = ds.RowCount() == 0
	spec.DataRef = spec.Data.Fingerprint()
	if spec.Truncated {
		d.logger.Printf("chart: %s truncated from %d to %d rows", kind, spec.SourceRows, spec.Rows)
	}
	return spec, nil
}

func (d *Dispatcher) histogram(sch schema.Schema, ds *datatable.Dataset, req Request) (*Spec, error) {
	if err := needNumeric(sch, Histogram, 1); err != nil {
		return nil, err
	}
	if err := requireRole(sch, "x", req.X, datatable.RoleNumeric); err != nil {
		return nil, err
	}
	if err := optionalColor(sch, req.Color); err != nil {
		return nil, err
	}
	enc := Encoding{X: req.X, Color: req.Color}
	return d.pointSpec(ds, req, enc, "Histogram of "+req.X)
}

func (d *Dispatcher) box(sch schema.Schema, ds *datatable.Dataset, req Request) (*Spec, error) {
	if err := needNumeric(sch, Box, 1); err != nil {
		return nil, err
	}
	if err := requireRole(sch, "y", req.Y, datatable.RoleNumeric); err != nil {
		return nil, err
	}
	if err := optionalColor(sch, req.Color); err != nil {
		return nil, err
	}
	title := "Box plot of " + req.Y
	if req.Color != "" {
		title += " by " + req.Color
	}
	// the grouping column becomes the categorical axis
	enc := Encoding{X: req.Color, Y: req.Y, Color: req.Color}
	return d.pointSpec(ds, req, enc, title)
}

func (d *Dispatcher) scatter(sch schema.Schema, ds *datatable.Dataset, req Request) (*Spec, error) {
	if err := needNumeric(sch, Scatter, 2); err != nil {
		return nil, err
	}
	if err := requireRole(sch, "x", req.X, datatable.RoleNumeric); err != nil {
		return nil, err
	}
	if err := requireRole(sch, "y", req.Y, datatable.RoleNumeric); err != nil {
		return nil, err
	}
	if err := optionalColor(sch, req.Color); err != nil {
		return nil, err
	}
	enc := Encoding{X: req.X, Y: req.Y, Color: req.Color}
	return d.pointSpec(ds, req, enc, fmt.Sprintf("%s vs %s", req.Y, req.X))
}

func (d *Dispatcher) line(sch schema.Schema, ds *datatable.Dataset, req Request) (*Spec, error) {
	if err := needNumeric(sch, Line, 1); err != nil {
		return nil, err
	}
	if err := requireRole(sch, "y", req.Y, datatable.RoleNumeric); err != nil {
		return nil, err
	}
	_, isColumn := sch.Lookup(req.X)
	byIndex := req.X == RowIndex && !isColumn
	if !byIndex {
		if err := requireRole(sch, "x", req.X, datatable.RoleNumeric); err != nil {
			return nil, err
		}
	}
	if err := optionalColor(sch, req.Color); err != nil {
		return nil, err
	}

	src := ds
	if byIndex {
		positions := make([]int64, ds.RowCount())
		for i := range positions {
			positions[i] = int64(i)
		}
		var err error
		src, err = ds.WithColumn(
			arrow.Field{Name: RowIndex, Type: arrow.PrimitiveTypes.Int64},
			datatable.Int64Column(positions),
		)
		if err != nil {
			return nil, err
		}
	}

	enc := Encoding{X: req.X, Y: req.Y, Color: req.Color}
	spec, err := d.pointSpec(src, req, enc, fmt.Sprintf("%s over %s", req.Y, req.X))
	if err != nil {
		return nil, err
	}

	dir := d.lineSort
	if req.Sort != nil {
		dir = *req.Sort
	}
	if dir != datatable.SortNone {
		sorted, err := spec.Data.SortBy(req.X, dir)
		if err != nil {
			return nil, err
		}
		spec.Data = sorted
		spec.Sort = dir
	}
	return spec, nil
}

func (d *Dispatcher) bar(sch schema.Schema, ds *datatable.Dataset, req Request) (*Spec, error) {
	if len(sch.Categorical()) == 0 {
		return nil, datatable.Errorf(datatable.ErrUnsupportedRequest, "bar chart needs a categorical column, dataset has none")
	}
	if err := requireRole(sch, "x", req.X, datatable.RoleCategorical); err != nil {
		return nil, err
	}
	if req.Color != "" {
		return nil, datatable.Errorf(datatable.ErrUnsupportedRequest, "bar chart takes no color column")
	}

	counts, err := valueCounts(ds, req.X)
	if err != nil {
		return nil, err
	}
	countName := counts.Names()[1]
	return &Spec{
		Title:    "Counts of " + req.X,
		Encoding: Encoding{X: req.X, Y: countName},
		Data:     counts,
	}, nil
}

func (d *Dispatcher) heatmap(sch schema.Schema, ds *datatable.Dataset, req Request) (*Spec, error) {
	if err := needNumeric(sch, Heatmap, 2); err != nil {
		return nil, err
	}
	cols := req.Columns
	if len(cols) == 0 {
		cols = sch.Numeric()
	}
	if len(cols) < 2 {
		return nil, datatable.Errorf(datatable.ErrUnsupportedRequest, "heatmap needs at least 2 numeric columns, got %d", len(cols))
	}
	for _, c := range cols {
		if err := requireRole(sch, "heatmap", c, datatable.RoleNumeric); err != nil {
			return nil, err
		}
	}

	compute := func() (*stats.Matrix, error) { return stats.Correlation(ds, sch, cols) }
	var m *stats.Matrix
	var err error
	if d.cache != nil {
		m, err = cache.Do(d.cache, cache.NewKey(ds.Fingerprint(), "correlation", cols...), compute)
	} else {
		m, err = compute()
	}
	if err != nil {
		return nil, err
	}

	data, err := m.Dataset()
	if err != nil {
		return nil, err
	}
	return &Spec{
		Title:    "Correlation heatmap",
		Encoding: Encoding{X: "column", Y: "column"},
		Data:     data,
		Matrix:   m,
	}, nil
}

// pointSpec projects ds to the encoded columns and applies the row cap.
func (d *Dispatcher) pointSpec(ds *datatable.Dataset, req Request, enc Encoding, title string) (*Spec, error) {
	var cols []string
	for _, c := range []string{enc.X, enc.Y, enc.Color} {
		if c != "" {
			cols = append(cols, c)
		}
	}
	data, err := ds.Select(cols...)
	if err != nil {
		return nil, err
	}

	limit := d.rowCap
	if req.RowCap > 0 {
		limit = req.RowCap
	}
	truncated := data.RowCount() > limit
	if truncated {
		data = data.Head(limit)
	}
	return &Spec{Title: title, Encoding: enc, Data: data, Truncated: truncated}, nil
}

// valueCounts counts the non-null values of a column, most frequent first.
// Ties keep first-appearance order.
func valueCounts(ds *datatable.Dataset, column string) (*datatable.Dataset, error) {
	values, err := ds.Values(column)
	if err != nil {
		return nil, err
	}

	var order []string
	counts := make(map[string]int64)
	for _, v := range values {
		if v.IsNull {
			continue
		}
		if _, ok := counts[v.Formatted]; !ok {
			order = append(order, v.Formatted)
		}
		counts[v.Formatted]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	n := make([]int64, len(order))
	for i, k := range order {
		n[i] = counts[k]
	}

	countName := "count"
	if column == countName {
		countName = "count_"
	}
	return datatable.FromColumns(datatable.Metadata{"kind": "value_counts"},
		datatable.NamedColumn{Name: column, Data: datatable.StringColumn(order, nil)},
		datatable.NamedColumn{Name: countName, Data: datatable.Int64Column(n)},
	)
}

func needNumeric(sch schema.Schema, kind Kind, n int) error {
	if got := len(sch.Numeric()); got < n {
		return datatable.Errorf(datatable.ErrUnsupportedRequest, "%s needs at least %d numeric columns, dataset has %d", kind, n, got)
	}
	return nil
}

func requireRole(sch schema.Schema, channel, column string, role datatable.Role) error {
	if column == "" {
		return datatable.Errorf(datatable.ErrUnsupportedRequest, "%s column is required", channel)
	}
	got, err := sch.Role(column)
	if err != nil {
		return err
	}
	if got != role {
		return datatable.Errorf(datatable.ErrUnsupportedRequest, "%s column %q is %s, want %s", channel, column, got, role)
	}
	return nil
}

func optionalColor(sch schema.Schema, column string) error {
	if column == "" {
		return nil
	}
	return requireRole(sch, "color", column, datatable.RoleCategorical)
}
