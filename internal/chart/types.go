// Package chart validates view requests against a classified schema and
// resolves them into renderer-agnostic chart specifications.
package chart

import (
	"fmt"
	"strings"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/stats"
)

// Kind names a chart type.
type Kind string

const (
	// Histogram bins one numeric column, optionally split by a categorical
	// color.
	Histogram Kind = "histogram"
	// Box shows the spread of a numeric Y, optionally grouped by a
	// categorical color.
	Box Kind = "box"
	// Scatter plots two numeric columns against each other.
	Scatter Kind = "scatter"
	// Line plots a numeric Y against a numeric X or the row index.
	Line Kind = "line"
	// Bar counts the values of one categorical column.
	Bar Kind = "bar"
	// Heatmap renders the Pearson correlation matrix of numeric columns.
	Heatmap Kind = "heatmap"
)

// AllKinds lists every supported chart kind.
var AllKinds = []Kind{Histogram, Box, Scatter, Line, Bar, Heatmap}

// ParseKind maps a user-facing name to a Kind. "correlation" and
// "correlation-heatmap" are accepted for Heatmap.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Histogram, Box, Scatter, Line, Bar, Heatmap:
		return k, nil
	case "correlation", "correlation-heatmap":
		return Heatmap, nil
	default:
		return "", datatable.Errorf(datatable.ErrUnsupportedRequest, "unknown chart kind %q", s)
	}
}

const (
	// DefaultRowCap bounds the rows handed to point-based charts.
	DefaultRowCap = 8000

	// RowIndex as a line chart's X plots rows by position. A dataset column
	// with the same name takes precedence.
	RowIndex = "index"
)

// Request is a declarative chart ask built from user selections.
type Request struct {
	Kind Kind `json:"kind" yaml:"kind"`

	X     string `json:"x,omitempty" yaml:"x,omitempty"`
	Y     string `json:"y,omitempty" yaml:"y,omitempty"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`

	// Columns selects the heatmap columns; empty means every numeric column.
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`

	// RowCap overrides the dispatcher's cap when positive.
	RowCap int `json:"row_cap,omitempty" yaml:"row_cap,omitempty"`

	// Sort orders a line chart by X. Nil uses the dispatcher default.
	Sort *datatable.SortDirection `json:"sort,omitempty" yaml:"sort,omitempty"`
}

// Encoding maps chart channels to data slice columns.
type Encoding struct {
	X     string `json:"x,omitempty"`
	Y     string `json:"y,omitempty"`
	Color string `json:"color,omitempty"`
}

// Spec is a fully resolved chart. Data holds exactly the rows and columns
// the renderer should draw.
type Spec struct {
	Kind     Kind     `json:"kind"`
	Title    string   `json:"title"`
	Encoding Encoding `json:"encoding"`

	Data    *datatable.Dataset `json:"-"`
	DataRef string             `json:"data_ref"`

	// SourceRows is the row count before truncation or aggregation.
	SourceRows int  `json:"source_rows"`
	Rows       int  `json:"rows"`
	Truncated  bool `json:"truncated"`
	Empty      bool `json:"empty"`

	Sort   datatable.SortDirection `json:"-"`
	Matrix *stats.Matrix           `json:"matrix,omitempty"`
}

func (s *Spec) String() string {
	flags := ""
	if s.Truncated {
		flags += " truncated"
	}
	if s.Empty {
		flags += " empty"
	}
	return fmt.Sprintf("%s %q rows=%d/%d%s", s.Kind, s.Title, s.Rows, s.SourceRows, flags)
}
