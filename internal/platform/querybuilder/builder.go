// Package querybuilder renders PostgreSQL statements with numbered
// placeholders. Raw fragments use '?' and are renumbered in order.
package querybuilder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// stmt accumulates SQL text and its bind arguments.
type stmt struct {
	sql  strings.Builder
	args []any
}

func (s *stmt) write(parts ...string) {
	for _, p := range parts {
		s.sql.WriteString(p)
	}
}

func (s *stmt) bind(v any) {
	s.args = append(s.args, v)
	s.sql.WriteString("$")
	s.sql.WriteString(strconv.Itoa(len(s.args)))
}

// fragment writes raw SQL, binding each '?' to the next value. Surplus '?'
// are kept literally.
func (s *stmt) fragment(sql string, values []any) {
	next := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' && next < len(values) {
			s.bind(values[next])
			next++
			continue
		}
		s.sql.WriteByte(sql[i])
	}
}

func (s *stmt) where(conds []Condition) {
	for i, c := range conds {
		if i == 0 {
			s.write(" WHERE ")
		} else {
			s.write(" AND ")
		}
		c.render(s)
	}
}

func (s *stmt) suffix(sql string) {
	if sql != "" {
		s.write(" ")
		s.fragment(sql, nil)
	}
}

func (s *stmt) done() (string, []any, error) {
	return s.sql.String(), s.args, nil
}

type Condition interface {
	render(s *stmt)
}

type cmpCondition struct {
	column string
	op     string
	value  any
}

// Cmp renders "column op $n", e.g. Cmp("ends_at", "<=", now).
func Cmp(column, op string, value any) Condition {
	return cmpCondition{column: column, op: op, value: value}
}

func Eq(column string, value any) Condition {
	return Cmp(column, "=", value)
}

func (c cmpCondition) render(s *stmt) {
	s.write(c.column, " ", c.op, " ")
	s.bind(c.value)
}

type inCondition struct {
	column string
	values []any
}

// In with no values matches nothing.
func In(column string, values []any) Condition {
	return inCondition{column: column, values: values}
}

func (c inCondition) render(s *stmt) {
	if len(c.values) == 0 {
		s.write("1=0")
		return
	}
	s.write(c.column, " IN (")
	for i, v := range c.values {
		if i > 0 {
			s.write(", ")
		}
		s.bind(v)
	}
	s.write(")")
}

type rawCondition string

func NotNull(column string) Condition {
	return rawCondition(column + " IS NOT NULL")
}

func (c rawCondition) render(s *stmt) {
	s.write(string(c))
}

type exprCondition struct {
	sql  string
	args []any
}

// Expr is a raw predicate with '?' placeholders.
func Expr(sql string, args ...any) Condition {
	return exprCondition{sql: sql, args: args}
}

func (c exprCondition) render(s *stmt) {
	s.fragment(c.sql, c.args)
}

type SelectBuilder struct {
	columns   []string
	table     string
	joins     []string
	where     []Condition
	orderBy   []string
	limit     int
	forUpdate bool
}

func Select(columns ...string) *SelectBuilder {
	return &SelectBuilder{columns: append([]string(nil), columns...)}
}

func (b *SelectBuilder) From(table string) *SelectBuilder {
	b.table = strings.TrimSpace(table)
	return b
}

// Join appends a raw join clause, e.g. "JOIN players p ON p.id = ur.player_id".
func (b *SelectBuilder) Join(clause string) *SelectBuilder {
	b.joins = append(b.joins, strings.TrimSpace(clause))
	return b
}

func (b *SelectBuilder) Where(conditions ...Condition) *SelectBuilder {
	b.where = append(b.where, conditions...)
	return b
}

func (b *SelectBuilder) OrderBy(parts ...string) *SelectBuilder {
	b.orderBy = append(b.orderBy, parts...)
	return b
}

func (b *SelectBuilder) Limit(limit int) *SelectBuilder {
	b.limit = limit
	return b
}

// ForUpdate locks the selected rows until the surrounding transaction ends.
func (b *SelectBuilder) ForUpdate() *SelectBuilder {
	b.forUpdate = true
	return b
}

func (b *SelectBuilder) ToSQL() (string, []any, error) {
	if len(b.columns) == 0 {
		return "", nil, errors.New("select columns are required")
	}
	if b.table == "" {
		return "", nil, errors.New("select table is required")
	}

	var s stmt
	s.write("SELECT ", strings.Join(b.columns, ", "), " FROM ", b.table)
	for _, join := range b.joins {
		s.write(" ", join)
	}
	s.where(b.where)
	if len(b.orderBy) > 0 {
		s.write(" ORDER BY ", strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		s.write(" LIMIT ", strconv.Itoa(b.limit))
	}
	if b.forUpdate {
		s.write(" FOR UPDATE")
	}
	return s.done()
}

type InsertBuilder struct {
	table   string
	columns []string
	rows    [][]any
	suffix  string
}

func InsertInto(table string) *InsertBuilder {
	return &InsertBuilder{table: strings.TrimSpace(table)}
}

func (b *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	b.columns = append([]string(nil), columns...)
	return b
}

func (b *InsertBuilder) Values(values ...any) *InsertBuilder {
	b.rows = append(b.rows, append([]any(nil), values...))
	return b
}

// Suffix appends raw SQL such as ON CONFLICT or RETURNING.
func (b *InsertBuilder) Suffix(sql string) *InsertBuilder {
	b.suffix = strings.TrimSpace(sql)
	return b
}

func (b *InsertBuilder) ToSQL() (string, []any, error) {
	switch {
	case b.table == "":
		return "", nil, errors.New("insert table is required")
	case len(b.columns) == 0:
		return "", nil, errors.New("insert columns are required")
	case len(b.rows) == 0:
		return "", nil, errors.New("insert values are required")
	}

	var s stmt
	s.args = make([]any, 0, len(b.rows)*len(b.columns))
	s.write("INSERT INTO ", b.table, " (", strings.Join(b.columns, ", "), ") VALUES ")
	for i, row := range b.rows {
		if len(row) != len(b.columns) {
			return "", nil, fmt.Errorf("insert row %d has %d values, expected %d", i, len(row), len(b.columns))
		}
		if i > 0 {
			s.write(", ")
		}
		s.write("(")
		for j, v := range row {
			if j > 0 {
				s.write(", ")
			}
			s.bind(v)
		}
		s.write(")")
	}
	s.suffix(b.suffix)
	return s.done()
}

type UpdateBuilder struct {
	table  string
	sets   []Condition
	where  []Condition
	suffix string
}

func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: strings.TrimSpace(table)}
}

func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.sets = append(b.sets, Eq(column, value))
	return b
}

// SetExpr assigns a raw expression, e.g. SetExpr("budget", "budget + ?", delta).
func (b *UpdateBuilder) SetExpr(column, expr string, args ...any) *UpdateBuilder {
	b.sets = append(b.sets, Expr(column+" = "+expr, args...))
	return b
}

func (b *UpdateBuilder) Where(conditions ...Condition) *UpdateBuilder {
	b.where = append(b.where, conditions...)
	return b
}

func (b *UpdateBuilder) Suffix(sql string) *UpdateBuilder {
	b.suffix = strings.TrimSpace(sql)
	return b
}

func (b *UpdateBuilder) ToSQL() (string, []any, error) {
	if b.table == "" {
		return "", nil, errors.New("update table is required")
	}
	if len(b.sets) == 0 {
		return "", nil, errors.New("update sets are required")
	}

	var s stmt
	s.write("UPDATE ", b.table, " SET ")
	for i, set := range b.sets {
		if i > 0 {
			s.write(", ")
		}
		set.render(&s)
	}
	s.where(b.where)
	s.suffix(b.suffix)
	return s.done()
}

type DeleteBuilder struct {
	table string
	where []Condition
}

func DeleteFrom(table string) *DeleteBuilder {
	return &DeleteBuilder{table: strings.TrimSpace(table)}
}

func (b *DeleteBuilder) Where(conditions ...Condition) *DeleteBuilder {
	b.where = append(b.where, conditions...)
	return b
}

// ToSQL refuses to render a DELETE without a WHERE clause.
func (b *DeleteBuilder) ToSQL() (string, []any, error) {
	if b.table == "" {
		return "", nil, errors.New("delete table is required")
	}
	if len(b.where) == 0 {
		return "", nil, errors.New("delete without where clause is not allowed")
	}

	var s stmt
	s.write("DELETE FROM ", b.table)
	s.where(b.where)
	return s.done()
}
