package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnion(t *testing.T) {
	tests := []struct {
		name    string
		schemas []Schema
		want    Schema
	}{
		{"none", nil, nil},
		{"single", []Schema{{"a", "b"}}, Schema{"a", "b"}},
		{"first seen order", []Schema{{"id", "name"}, {"age", "id"}}, Schema{"id", "name", "age"}},
		{"empty schema ignored", []Schema{{}, {"x"}, nil}, Schema{"x"}},
		{"exact match only", []Schema{{"Name"}, {"name"}}, Schema{"Name", "name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Union(tt.schemas))
		})
	}
}

func TestSchemaPositionsAndProject(t *testing.T) {
	unified := Schema{"id", "name", "age"}
	pos := Schema{"age", "id"}.Positions(unified)
	assert.Equal(t, []int{1, -1, 0}, pos)

	row := Project(nil, []string{"30", "7"}, pos, "-")
	assert.Equal(t, []string{"7", "-", "30"}, row)

	// short row: position past the end is filled
	row = Project(row, []string{"30"}, pos, "")
	assert.Equal(t, []string{"", "", "30"}, row)
}

func TestSchemaMissing(t *testing.T) {
	assert.Empty(t, Schema{"a"}.Missing(Schema{"a", "b"}))
	assert.Equal(t, []string{"c"}, Schema{"a", "c"}.Missing(Schema{"a", "b"}))
}

func TestUnify(t *testing.T) {
	inputs := []InputReport{
		{Name: "empty.csv"},
		{Name: "a.csv", Columns: []string{"id", "name"}},
		{Name: "b.csv", Columns: []string{"name"}},
	}

	got, err := unify(inputs, true)
	require.NoError(t, err)
	assert.Equal(t, Schema{"id", "name"}, got)

	inputs = append(inputs, InputReport{Name: "c.csv", Columns: []string{"id", "zip"}})
	_, err = unify(inputs, true)
	require.Error(t, err)
	assert.Equal(t, KindHeaderConflict, KindOf(err))
	assert.Equal(t, "c.csv", SourceOf(err))

	got, err = unify(inputs, false)
	require.NoError(t, err)
	assert.Equal(t, Schema{"id", "name", "zip"}, got)
}
