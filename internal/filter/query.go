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

package filter

import (
	"strconv"
	"strings"

	"github.com/magpierre/dsb-eda/datatable"
)

// CompOp is a comparison operator in a search query.
type CompOp int

const (
	OpEqual CompOp = iota
	OpNotEqual
	OpGreater
	OpLess
	OpGreaterEqual
	OpLessEqual
	OpContains
)

var opSymbols = []struct {
	op     CompOp
	symbol string
}{
	{OpGreaterEqual, ">="},
	{OpLessEqual, "<="},
	{OpNotEqual, "!="},
	{OpEqual, "="},
	{OpGreater, ">"},
	{OpLess, "<"},
	{OpContains, "~"},
}

func (op CompOp) String() string {
	for _, s := range opSymbols {
		if s.op == op {
			return s.symbol
		}
	}
	return "?"
}

// Expression is a single comparison. An empty ColumnName with OpContains
// searches every cell of the row.
type Expression struct {
	ColumnName string
	Operator   CompOp
	Value      string
}

// Query is a search expression such as `sepal_len > 5 AND species = setosa`.
// Expressions are combined left to right by LogicOps. It implements
// datatable.Filter.
type Query struct {
	Expressions []Expression
	LogicOps    []LogicOp

	text string
}

// ParseQuery parses a search query over the given columns. Column names
// match case-insensitively. A blank query returns nil, nil.
func ParseQuery(query string, columns []string) (*Query, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[strings.ToLower(c)] = true
	}

	q := &Query{text: strings.TrimSpace(query)}
	for _, part := range splitByLogicOps(query) {
		if part.isOperator {
			if part.text == "AND" {
				q.LogicOps = append(q.LogicOps, LogicAND)
			} else {
				q.LogicOps = append(q.LogicOps, LogicOR)
			}
			continue
		}
		expr, err := parseExpression(part.text, known)
		if err != nil {
			return nil, err
		}
		q.Expressions = append(q.Expressions, expr)
	}

	if len(q.Expressions) == 0 || len(q.LogicOps) != len(q.Expressions)-1 {
		return nil, datatable.Errorf(datatable.ErrInvalidFilter, "mismatched expressions and operators in %q", q.text)
	}
	return q, nil
}

type queryPart struct {
	text       string
	isOperator bool
}

// splitByLogicOps splits a query on whitespace-delimited AND/OR, keeping the
// operators.
func splitByLogicOps(query string) []queryPart {
	var parts []queryPart
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			parts = append(parts, queryPart{text: s})
		}
		current.Reset()
	}

	for i := 0; i < len(query); {
		matched := false
		for _, kw := range []string{"AND", "OR"} {
			end := i + len(kw)
			if end > len(query) || !strings.EqualFold(query[i:end], kw) {
				continue
			}
			if (i == 0 || isWhitespace(query[i-1])) && (end == len(query) || isWhitespace(query[end])) {
				flush()
				parts = append(parts, queryPart{text: kw, isOperator: true})
				i = end
				matched = true
				break
			}
		}
		if !matched {
			current.WriteByte(query[i])
			i++
		}
	}
	flush()
	return parts
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// parseExpression splits text at the leftmost operator; at one position the
// longest symbol wins, so ">=" is not read as ">".
func parseExpression(text string, known map[string]bool) (Expression, error) {
	text = strings.TrimSpace(text)

	best, at := -1, -1
	for i, s := range opSymbols {
		idx := strings.Index(text, s.symbol)
		if idx <= 0 {
			continue
		}
		if at < 0 || idx < at || (idx == at && len(s.symbol) > len(opSymbols[best].symbol)) {
			best, at = i, idx
		}
	}
	if best < 0 {
		return Expression{Operator: OpContains, Value: text}, nil
	}

	s := opSymbols[best]
	column := strings.TrimSpace(text[:at])
	if !known[strings.ToLower(column)] {
		return Expression{}, datatable.Errorf(datatable.ErrInvalidColumn, "unknown column %q in query", column)
	}
	return Expression{
		ColumnName: column,
		Operator:   s.op,
		Value:      strings.Trim(strings.TrimSpace(text[at+len(s.symbol):]), `"'`),
	}, nil
}

// Evaluate implements datatable.Filter.
func (q *Query) Evaluate(row []datatable.Value, columnNames []string) (bool, error) {
	if q == nil || len(q.Expressions) == 0 {
		return true, nil
	}

	result := evaluateExpression(q.Expressions[0], row, columnNames)
	for i, op := range q.LogicOps {
		next := evaluateExpression(q.Expressions[i+1], row, columnNames)
		if op == LogicAND {
			result = result && next
		} else {
			result = result || next
		}
	}
	return result, nil
}

// Description implements datatable.Filter.
func (q *Query) Description() string {
	if q == nil {
		return "empty query"
	}
	return q.text
}

func evaluateExpression(expr Expression, row []datatable.Value, columnNames []string) bool {
	if expr.ColumnName == "" {
		term := strings.ToLower(expr.Value)
		for _, cell := range row {
			if !cell.IsNull && strings.Contains(strings.ToLower(cell.Formatted), term) {
				return true
			}
		}
		return false
	}

	idx := -1
	for i, name := range columnNames {
		if strings.EqualFold(name, expr.ColumnName) {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(row) || row[idx].IsNull {
		return false
	}

	cell := row[idx].Formatted
	switch expr.Operator {
	case OpEqual:
		return equalValues(cell, expr.Value)
	case OpNotEqual:
		return !equalValues(cell, expr.Value)
	case OpContains:
		return strings.Contains(strings.ToLower(cell), strings.ToLower(expr.Value))
	default:
		return compare(cell, expr.Value, expr.Operator)
	}
}

// equalValues compares numerically when both sides parse, so "5" matches "5.0".
func equalValues(cell, value string) bool {
	a, err1 := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	b, err2 := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err1 == nil && err2 == nil {
		return a == b
	}
	return strings.EqualFold(cell, value)
}

func compare(cell, value string, op CompOp) bool {
	var cmp int
	a, err1 := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	b, err2 := strconv.ParseFloat(strings.TrimSpace(value), 64)
	switch {
	case err1 == nil && err2 == nil && a < b:
		cmp = -1
	case err1 == nil && err2 == nil && a > b:
		cmp = 1
	case err1 == nil && err2 == nil:
		cmp = 0
	default:
		cmp = strings.Compare(strings.ToLower(cell), strings.ToLower(value))
	}

	switch op {
	case OpGreater:
		return cmp > 0
	case OpLess:
		return cmp < 0
	case OpGreaterEqual:
		return cmp >= 0
	case OpLessEqual:
		return cmp <= 0
	}
	return false
}
