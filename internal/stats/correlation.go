package stats

import (
	"math"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/stat"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/schema"
)

// Matrix is a square, symmetric correlation matrix. Values[i][j] is the
// correlation of Columns[i] and Columns[j].
type Matrix struct {
	Columns []string
	Values  [][]float64
}

// At returns the correlation of two columns by name.
func (m *Matrix) At(a, b string) (float64, bool) {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.Values[i][j], true
}

func (m *Matrix) index(name string) int {
	for i, c := range m.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// MarshalJSON writes undefined correlations as null.
func (m *Matrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = make([]*float64, len(row))
		for j, v := range row {
			values[i][j] = finite(v)
		}
	}
	return json.Marshal(struct {
		Columns []string     `json:"columns"`
		Values  [][]*float64 `json:"values"`
	}{m.Columns, values})
}

// Dataset lays the matrix out as a table: a "column" label column followed by
// one float64 column per correlated column. NaN cells become nulls.
func (m *Matrix) Dataset() (*datatable.Dataset, error) {
	cols := make([]datatable.NamedColumn, 0, len(m.Columns)+1)
	cols = append(cols, datatable.NamedColumn{Name: "column", Data: datatable.StringColumn(m.Columns, nil)})
	for j, name := range m.Columns {
		col := make([]float64, len(m.Columns))
		for i := range m.Columns {
			col[i] = m.Values[i][j]
		}
		cols = append(cols, datatable.NamedColumn{Name: name, Data: datatable.Float64Column(col)})
	}
	return datatable.FromColumns(datatable.Metadata{"kind": "correlation"}, cols...)
}

// Correlation computes the pairwise Pearson correlation of the given numeric
// columns. Each pair uses the rows where both values are present. A column
// with zero variance yields NaN in its row and column, including the
// diagonal; every other diagonal cell is exactly 1.
func Correlation(ds *datatable.Dataset, sch schema.Schema, cols []string) (*Matrix, error) {
	if len(cols) == 0 {
		return nil, datatable.Errorf(datatable.ErrInvalidColumn, "no columns to correlate")
	}

	data := make([][]float64, len(cols))
	seen := make(map[string]bool, len(cols))
	for i, name := range cols {
		if seen[name] {
			return nil, datatable.Errorf(datatable.ErrInvalidColumn, "column %q listed twice", name)
		}
		seen[name] = true

		role, err := sch.Role(name)
		if err != nil {
			return nil, err
		}
		if role != datatable.RoleNumeric {
			return nil, datatable.Errorf(datatable.ErrInvalidColumn, "column %q is %s, want numeric", name, role)
		}
		xs, err := ds.Float64s(name)
		if err != nil {
			return nil, err
		}
		data[i] = xs
	}

	n := len(cols)
	m := &Matrix{Columns: append([]string(nil), cols...), Values: make([][]float64, n)}
	for i := range m.Values {
		m.Values[i] = make([]float64, n)
	}

	flat := make([]bool, n)
	for i, xs := range data {
		flat[i] = constant(valid(xs))
	}

	for i := 0; i < n; i++ {
		if flat[i] {
			m.Values[i][i] = math.NaN()
		} else {
			m.Values[i][i] = 1
		}
		for j := i + 1; j < n; j++ {
			r := math.NaN()
			if !flat[i] && !flat[j] {
				r = pearson(data[i], data[j])
			}
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m, nil
}

// pearson correlates x and y over the positions where both are present.
func pearson(x, y []float64) float64 {
	var px, py []float64
	for k := range x {
		if math.IsNaN(x[k]) || math.IsNaN(y[k]) {
			continue
		}
		px = append(px, x[k])
		py = append(py, y[k])
	}
	if constant(px) || constant(py) {
		return math.NaN()
	}

	r := stat.Correlation(px, py, nil)
	return math.Max(-1, math.Min(1, r))
}
