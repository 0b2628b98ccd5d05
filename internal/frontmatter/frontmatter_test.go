package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitNoFrontmatter(t *testing.T) {
	input := []byte("# Title\n\nHello\n")

	fm, body, had, err := Split(input)
	require.NoError(t, err)
	assert.False(t, had)
	assert.Empty(t, fm)
	assert.Equal(t, input, body)
}

func TestSplitWithFrontmatter(t *testing.T) {
	input := []byte("---\ntitle: Post\ndraft: false\n---\n# Title\n")

	fm, body, had, err := Split(input)
	require.NoError(t, err)
	assert.True(t, had)
	assert.Equal(t, []byte("title: Post\ndraft: false\n"), fm)
	assert.Equal(t, []byte("# Title\n"), body)
}

func TestSplitEmptyBlock(t *testing.T) {
	fm, body, had, err := Split([]byte("---\n---\nbody\n"))
	require.NoError(t, err)
	assert.True(t, had)
	assert.Empty(t, fm)
	assert.Equal(t, []byte("body\n"), body)
}

func TestSplitUnclosedBlockErrors(t *testing.T) {
	_, _, _, err := Split([]byte("---\ntitle: Post\n# Body\n"))
	assert.Error(t, err)
}

func TestSplitCRLF(t *testing.T) {
	fm, body, had, err := Split([]byte("---\r\ntitle: Post\r\n---\r\nbody\r\n"))
	require.NoError(t, err)
	assert.True(t, had)
	assert.Equal(t, []byte("title: Post\n"), fm)
	assert.Equal(t, []byte("body\n"), body)
}

func TestSplitDelimiterMustStartDocument(t *testing.T) {
	input := []byte("\n---\ntitle: Post\n---\nbody\n")

	_, body, had, err := Split(input)
	require.NoError(t, err)
	assert.False(t, had)
	assert.Equal(t, input, body)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		fields map[string]any
		body   string
	}{
		{
			"scalar fields",
			"---\ntitle: Hello\ncount: 3\n---\nbody",
			map[string]any{"title": "Hello", "count": 3},
			"body",
		},
		{
			"no frontmatter yields empty map",
			"just markdown",
			map[string]any{},
			"just markdown",
		},
		{
			"nested values",
			"---\nauthor:\n  name: Ada\n---\n",
			map[string]any{"author": map[string]any{"name": "Ada"}},
			"",
		},
		{
			"whitespace-only block",
			"---\n  \n---\nbody",
			map[string]any{},
			"body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, body, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.fields, fields)
			assert.Equal(t, tt.body, string(body))
		})
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, _, err := Parse([]byte("---\n{unbalanced\n---\nbody"))
	assert.Error(t, err)
}
