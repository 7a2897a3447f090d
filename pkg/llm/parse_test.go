package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain object",
			in:   `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "fenced json block",
			in:   "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "fenced block without language",
			in:   "```\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "object surrounded by prose",
			in:   `Sure! Here is the plan: {"a": {"b": 2}} hope it helps`,
			want: `{"a": {"b": 2}}`,
		},
		{
			name: "array root",
			in:   `the list: [1, 2, 3] done`,
			want: `[1, 2, 3]`,
		},
		{
			name: "braces inside strings ignored",
			in:   `{"text": "closing } brace"} trailing`,
			want: `{"text": "closing } brace"}`,
		},
		{
			name: "no json at all",
			in:   "  just words  ",
			want: "just words",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestUnmarshalLenient(t *testing.T) {
	var out struct {
		Rating int `json:"rating"`
	}
	err := UnmarshalLenient("```json\n{\"rating\": 7}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, 7, out.Rating)

	err = UnmarshalLenient("not json", &out)
	assert.Error(t, err)
}
