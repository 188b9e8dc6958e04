package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery(`(format:Book AND building:"Main Library")`)
	require.NoError(t, err)
	assert.Equal(t, []Term{
		{Field: "format", Value: "Book"},
		{Field: "building", Value: "Main Library"},
	}, q.Terms)
}

func TestParseQueryMatchAll(t *testing.T) {
	q, err := ParseQuery("*:*")
	require.NoError(t, err)
	assert.Empty(t, q.Terms)
}

func TestParseQueryEscapedQuote(t *testing.T) {
	q, err := ParseQuery(`title:"say \"hi\""`)
	require.NoError(t, err)
	require.Len(t, q.Terms, 1)
	assert.Equal(t, `say "hi"`, q.Terms[0].Value)
}

func TestParseQueryErrors(t *testing.T) {
	for _, input := range []string{"format", `title:"open`, "format:", ":x"} {
		_, err := ParseQuery(input)
		assert.Error(t, err, input)
	}
}

func TestEncodeParamsIsDeterministic(t *testing.T) {
	a := EncodeParams(map[string]string{"until": "2020-01-01", "from": "2010-01-01", "cursor": "100"})
	b := EncodeParams(map[string]string{"cursor": "100", "from": "2010-01-01", "until": "2020-01-01"})
	assert.Equal(t, a, b)
	assert.Equal(t, "cursor=100&from=2010-01-01&until=2020-01-01", a)

	decoded, err := DecodeParams(a)
	require.NoError(t, err)
	assert.Equal(t, "100", decoded["cursor"])
}

func TestCustomSetQuery(t *testing.T) {
	s := Settings{SetQueries: []NamedQuery{{Name: "ebooks", Query: "format:eBook"}}}

	q, ok := s.CustomSetQuery("ebooks")
	assert.True(t, ok)
	assert.Equal(t, "format:eBook", q)

	q, ok = s.CustomSetQuery("format:eBook")
	assert.True(t, ok)
	assert.Equal(t, "format:eBook", q)

	_, ok = s.CustomSetQuery("missing")
	assert.False(t, ok)
	assert.True(t, s.HasSets())
	assert.False(t, Settings{}.HasSets())
}
