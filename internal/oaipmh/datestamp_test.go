package oaipmh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatestamp(t *testing.T) {
	from, err := ParseDatestamp("2010-05-01", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, 5, 1, 0, 0, 0, 0, time.UTC), from)

	until, err := ParseDatestamp("2010-05-01", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, 5, 1, 23, 59, 59, 0, time.UTC), until)

	full, err := ParseDatestamp("2010-05-01T10:20:30Z", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, 5, 1, 10, 20, 30, 0, time.UTC), full)
}

func TestParseDatestampRejectsGarbage(t *testing.T) {
	for _, s := range []string{"2010-13-01", "yesterday", "2010-02-30", "2010-05-01T25:00:00Z"} {
		_, err := ParseDatestamp(s, false)
		assert.Error(t, err, s)
	}
}

func TestGranularityOf(t *testing.T) {
	assert.Equal(t, GranularityDay, GranularityOf("2010-05-01"))
	assert.Equal(t, GranularitySecond, GranularityOf("2010-05-01T00:00:00Z"))
	assert.Equal(t, GranularityInvalid, GranularityOf("2010-05-01T00:00:00"))
	assert.Equal(t, GranularityInvalid, GranularityOf("2010"))
}

func TestFormatTime(t *testing.T) {
	loc := time.FixedZone("X", 2*60*60)
	assert.Equal(t, "2010-05-01T08:00:00Z", FormatTime(time.Date(2010, 5, 1, 10, 0, 0, 0, loc)))
	assert.Equal(t, "2010-05-01", TruncateToDay("2010-05-01T08:00:00Z"))
}

func TestParseVerb(t *testing.T) {
	assert.Equal(t, VerbListRecords, ParseVerb("ListRecords"))
	assert.Equal(t, VerbUnknown, ParseVerb("listrecords"))
	assert.Equal(t, "GetRecord", VerbGetRecord.String())

	req := ParseRequest(VerbListIdentifiers, map[string]string{ArgMetadataPrefix: "oai_dc"})
	list, ok := req.(ListRequest)
	require.True(t, ok)
	assert.True(t, list.HeadersOnly)
	assert.Equal(t, VerbListIdentifiers, list.Verb())
	assert.Nil(t, ParseRequest(VerbUnknown, nil))
}
