package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowRecord(t *testing.T) {
	row := &Row{
		Collection: "books",
		Id:         "1",
		Data:       []byte(`{"title":"Dune","pages":412}`),
		Version:    2,
	}

	r, err := row.Record()
	require.NoError(t, err)
	assert.Equal(t, "books", r.Collection)
	assert.Equal(t, map[string]any{"id": "1", "title": "Dune", "pages": float64(412)}, r.Attributes())

	_, err = (&Row{Data: []byte("{")}).Record()
	assert.Error(t, err)
}

func TestEncodeDropsId(t *testing.T) {
	data, err := Encode(map[string]any{"id": "1", "title": "Dune"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Dune"}`, string(data))

	data, err = Encode(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestMerge(t *testing.T) {
	for _, tc := range []struct {
		name     string
		data     string
		patch    map[string]any
		expected string
	}{
		{
			name:     "adds and replaces",
			data:     `{"title":"Dune","pages":412}`,
			patch:    map[string]any{"pages": 500, "author": "Herbert"},
			expected: `{"title":"Dune","pages":500,"author":"Herbert"}`,
		},
		{
			name:     "empty data",
			data:     ``,
			patch:    map[string]any{"title": "Dune"},
			expected: `{"title":"Dune"}`,
		},
		{
			name:     "id is ignored",
			data:     `{"title":"Dune"}`,
			patch:    map[string]any{"id": "2"},
			expected: `{"title":"Dune"}`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Merge([]byte(tc.data), tc.patch)
			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, string(data))
		})
	}
}
