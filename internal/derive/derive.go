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

// Package derive computes new numeric columns from Go expressions such as
// `row["petal length (cm)"] / row["petal width (cm)"]`. Expressions see the
// numeric columns of the current row and the math package.
package derive

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/magpierre/dsb-eda/datatable"
	"github.com/magpierre/dsb-eda/internal/schema"
)

const source = `package derive

import "math"

var _ = math.Abs

func Eval(row map[string]float64) float64 {
	return %s
}
`

// Expr is a compiled expression.
type Expr struct {
	text string
	fn   func(map[string]float64) float64
}

// Compile interprets expr as the body of a float64 Go expression over
// row map[string]float64.
func Compile(expr string) (*Expr, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, datatable.Errorf(datatable.ErrInvalidExpression, "empty expression")
	}
	if strings.ContainsAny(expr, "\n\r;") {
		return nil, datatable.Errorf(datatable.ErrInvalidExpression, "expression must be a single Go expression")
	}

	i := interp.New(interp.Options{
		Stdout: io.Discard,
		Stderr: io.Discard,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("error loading stdlib: %w", err)
	}
	if _, err := i.Eval(fmt.Sprintf(source, expr)); err != nil {
		return nil, datatable.Errorf(datatable.ErrInvalidExpression, "%s: %v", expr, err)
	}

	v, err := i.Eval("derive.Eval")
	if err != nil {
		return nil, datatable.Errorf(datatable.ErrInvalidExpression, "%s: %v", expr, err)
	}
	fn, ok := v.Interface().(func(map[string]float64) float64)
	if !ok {
		return nil, datatable.Errorf(datatable.ErrInvalidExpression, "%s: does not evaluate to float64", expr)
	}
	return &Expr{text: expr, fn: fn}, nil
}

func (e *Expr) String() string { return e.text }

// Eval runs the expression on one row. Interpreter panics become errors.
func (e *Expr) Eval(row map[string]float64) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = datatable.Errorf(datatable.ErrInvalidExpression, "%s: %v", e.text, r)
		}
	}()
	return e.fn(row), nil
}

// Apply appends a float64 column called name, holding expr evaluated on
// every row of ds. Null inputs are NaN inside the expression; NaN and
// infinite results are stored as nulls.
func Apply(ds *datatable.Dataset, sch schema.Schema, name, expr string) (*datatable.Dataset, error) {
	if name == "" {
		return nil, datatable.Errorf(datatable.ErrInvalidExpression, "derived column needs a name")
	}
	if ds.Has(name) {
		return nil, datatable.Errorf(datatable.ErrInvalidColumn, "column %q already exists", name)
	}

	compiled, err := Compile(expr)
	if err != nil {
		return nil, err
	}

	numeric := sch.Numeric()
	inputs := make([][]float64, len(numeric))
	for j, col := range numeric {
		if inputs[j], err = ds.Float64s(col); err != nil {
			return nil, err
		}
	}

	out := make([]float64, ds.RowCount())
	row := make(map[string]float64, len(numeric))
	for i := range out {
		for j, col := range numeric {
			row[col] = inputs[j][i]
		}
		v, err := compiled.Eval(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if math.IsInf(v, 0) {
			v = math.NaN()
		}
		out[i] = v
	}

	return ds.WithColumn(
		arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		datatable.Float64Column(out),
	)
}
