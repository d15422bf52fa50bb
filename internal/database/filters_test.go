package database

import (
	"testing"

	"github.com/ZanzyTHEbar/mcp-graphstore-postgres-go/internal/apptype"
	"github.com/stretchr/testify/assert"
)

func TestTripletWhere_Empty(t *testing.T) {
	w := newWhere()
	tripletWhere(w, apptype.TripletFilter{})
	assert.Equal(t, "", w.sql("WHERE"))
	assert.Empty(t, w.args)
}

func TestTripletWhere_AllFilters(t *testing.T) {
	w := newWhere()
	tripletWhere(w, apptype.TripletFilter{
		EntityNames:   []string{"Alice"},
		RelationNames: []string{"KNOWS"},
		Properties:    map[string]any{"since": 2020},
		IDs:           []string{"Alice"},
	})
	got := w.sql("WHERE")
	assert.Equal(t, " WHERE (s.name = ANY($1::text[]) OR t.name = ANY($1::text[]))"+
		" AND r.label = ANY($2::text[])"+
		" AND (r.properties @> $3::jsonb OR s.properties @> $3::jsonb OR t.properties @> $3::jsonb)"+
		" AND (s.id = ANY($4::text[]) OR t.id = ANY($4::text[]))", got)
	assert.Len(t, w.args, 4)
	assert.Equal(t, []string{"KNOWS"}, w.args[1])
}

func TestNodeWhere_OffsetsPlaceholders(t *testing.T) {
	w := newWhere("vector")
	w.add("n.embedding IS NOT NULL")
	nodeWhere(w, apptype.NodeFilter{IDs: []string{"a", "b"}, Properties: map[string]any{"p1": "v1"}})
	assert.Equal(t, " AND n.embedding IS NOT NULL AND n.id = ANY($2::text[]) AND n.properties @> $3::jsonb", w.sql("AND"))
	assert.Equal(t, "vector", w.args[0])
	assert.Len(t, w.args, 3)
}

func TestNonNil(t *testing.T) {
	assert.NotNil(t, nonNil(nil))
	assert.Equal(t, []string{"x"}, nonNil([]string{"x"}))
}
