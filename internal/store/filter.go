package store

import (
	"fmt"
	"strings"
)

// Cond is one field condition. Field is a dotted document path: top-level
// record fields ("slug", "createdAt") map to table columns, "info.*" and
// "torrents.*" address into the jsonb documents.
type Cond struct {
	Field string
	Op    Op
	Value interface{}
}

type Op string

const (
	OpEq       Op = "="
	OpLt       Op = "<"
	OpGt       Op = ">"
	OpNotEmpty Op = "notEmpty" // jsonb array is present and non-empty
)

// Filter is an AND of Conds, optionally combined with a list of OR groups:
// (conds...) AND (group1 OR group2 OR ...), each group itself an AND.
type Filter struct {
	Conds []Cond
	Or    [][]Cond
}

func Eq(field string, value interface{}) Cond { return Cond{Field: field, Op: OpEq, Value: value} }
func Lt(field string, value interface{}) Cond { return Cond{Field: field, Op: OpLt, Value: value} }
func Gt(field string, value interface{}) Cond { return Cond{Field: field, Op: OpGt, Value: value} }
func NotEmpty(field string) Cond              { return Cond{Field: field, Op: OpNotEmpty} }

// Sort orders results by one document field.
type Sort struct {
	Field string
	Desc  bool
}

var columnFields = map[string]string{
	"id":                "id",
	"slug":              "slug",
	"createdAt":         "created_at",
	"updatedAt":         "updated_at",
	"infoUpdatedAt":     "info_updated_at",
	"torrentsUpdatedAt": "torrents_updated_at",
}

// sqlExpr renders the SQL expression addressing a document field. Numeric
// jsonb comparisons need the value cast, which the caller decides based on
// the condition value.
func sqlExpr(field string, numeric bool) (string, error) {
	if col, ok := columnFields[field]; ok {
		return col, nil
	}

	parts := strings.Split(field, ".")
	col := parts[0]
	if col != "info" && col != "torrents" {
		return "", fmt.Errorf("unknown filter field %q", field)
	}
	path := strings.Join(parts[1:], ",")
	expr := fmt.Sprintf("%s #>> '{%s}'", col, path)
	if numeric {
		expr = fmt.Sprintf("(%s)::numeric", expr)
	}
	return expr, nil
}

func jsonbExpr(field string) (string, error) {
	parts := strings.Split(field, ".")
	col := parts[0]
	if col != "info" && col != "torrents" {
		return "", fmt.Errorf("field %q is not a document path", field)
	}
	return fmt.Sprintf("%s #> '{%s}'", col, strings.Join(parts[1:], ",")), nil
}

func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

func renderCond(c Cond, args *[]interface{}) (string, error) {
	if c.Op == OpNotEmpty {
		expr, err := jsonbExpr(c.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("jsonb_array_length(coalesce(%s, '[]'::jsonb)) > 0", expr), nil
	}

	expr, err := sqlExpr(c.Field, isNumeric(c.Value))
	if err != nil {
		return "", err
	}
	*args = append(*args, c.Value)
	return fmt.Sprintf("%s %s $%d", expr, c.Op, len(*args)), nil
}

// where renders the filter into a WHERE clause body and its argument list.
// An empty filter matches everything.
func (f Filter) where() (string, []interface{}, error) {
	var clauses []string
	var args []interface{}

	for _, c := range f.Conds {
		clause, err := renderCond(c, &args)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
	}

	if len(f.Or) > 0 {
		var groups []string
		for _, group := range f.Or {
			var groupClauses []string
			for _, c := range group {
				clause, err := renderCond(c, &args)
				if err != nil {
					return "", nil, err
				}
				groupClauses = append(groupClauses, clause)
			}
			groups = append(groups, "("+strings.Join(groupClauses, " AND ")+")")
		}
		clauses = append(clauses, "("+strings.Join(groups, " OR ")+")")
	}

	if len(clauses) == 0 {
		return "TRUE", nil, nil
	}
	return strings.Join(clauses, " AND "), args, nil
}
