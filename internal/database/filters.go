package database

import (
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/apptype"
)

// whereBuilder accumulates AND-ed predicates with positional arguments
type whereBuilder struct {
	clauses []string
	args    []any
}

// newWhere starts a builder whose first placeholders are already taken by args
func newWhere(args ...any) *whereBuilder {
	return &whereBuilder{args: args}
}

// arg binds a value and returns its placeholder
func (w *whereBuilder) arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *whereBuilder) add(clause string) {
	w.clauses = append(w.clauses, clause)
}

// sql renders the predicates joined with AND, prefixed by the keyword
func (w *whereBuilder) sql(keyword string) string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " " + keyword + " " + strings.Join(w.clauses, " AND ")
}

// nodeWhere filters the node table aliased n
func nodeWhere(w *whereBuilder, f apptype.NodeFilter) {
	if len(f.IDs) > 0 {
		w.add("n.id = ANY(" + w.arg(f.IDs) + "::text[])")
	}
	if len(f.Properties) > 0 {
		w.add("n.properties @> " + w.arg(f.Properties) + "::jsonb")
	}
}

// tripletWhere filters a relation r joined with its source s and target t
func tripletWhere(w *whereBuilder, f apptype.TripletFilter) {
	if len(f.EntityNames) > 0 {
		ph := w.arg(f.EntityNames)
		w.add("(s.name = ANY(" + ph + "::text[]) OR t.name = ANY(" + ph + "::text[]))")
	}
	if len(f.RelationNames) > 0 {
		w.add("r.label = ANY(" + w.arg(f.RelationNames) + "::text[])")
	}
	if len(f.Properties) > 0 {
		ph := w.arg(f.Properties)
		w.add("(r.properties @> " + ph + "::jsonb OR s.properties @> " + ph + "::jsonb OR t.properties @> " + ph + "::jsonb)")
	}
	if len(f.IDs) > 0 {
		ph := w.arg(f.IDs)
		w.add("(s.id = ANY(" + ph + "::text[]) OR t.id = ANY(" + ph + "::text[]))")
	}
}

// nonNil keeps pgx from binding a nil slice as SQL NULL
func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
