package format

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/oaipmh/internal/domain"
)

const marc = `<?xml version="1.0"?>
<record xmlns="http://www.loc.gov/MARC21/slim"><leader>00000cam</leader><controlfield tag="001">1</controlfield></record>`

func TestRenderDublinCore(t *testing.T) {
	f := New()
	rec := domain.Record{ID: "1", Fields: map[string][]string{
		"title":  {"Fish & Chips"},
		"author": {"Doe, Jane"},
		"isbn":   {"9780000000001"},
	}}

	out, err := f.Render(rec, PrefixOAIDC)
	require.NoError(t, err)
	assert.Contains(t, out, `<oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/"`)
	assert.Contains(t, out, `<dc:title>Fish &amp; Chips</dc:title>`)
	assert.Contains(t, out, `<dc:creator>Doe, Jane</dc:creator>`)
	assert.Contains(t, out, `<dc:identifier>9780000000001</dc:identifier>`)
}

func TestRenderMARC(t *testing.T) {
	f := New()
	rec := domain.Record{ID: "1", Fields: map[string][]string{FieldFullRecord: {marc}}}

	require.True(t, f.Supports(rec, PrefixMARC21))
	out, err := f.Render(rec, PrefixMARC21)
	require.NoError(t, err)
	assert.NotContains(t, out, "<?xml")
	assert.Contains(t, out, `<controlfield tag="001">1</controlfield>`)
}

func TestRenderUnsupported(t *testing.T) {
	f := New()
	rec := domain.Record{ID: "1"}

	assert.False(t, f.Supports(rec, PrefixMARC21))
	_, err := f.Render(rec, PrefixMARC21)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedFormat))

	_, err = f.Render(rec, "mods")
	assert.True(t, errors.Is(err, domain.ErrUnsupportedFormat))
}

func TestRenderCorruptMARC(t *testing.T) {
	f := New()
	rec := domain.Record{ID: "9", Fields: map[string][]string{FieldFullRecord: {"<record><leader>"}}}

	_, err := f.Render(rec, PrefixMARC21)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrUnsupportedFormat))
}

func TestFormats(t *testing.T) {
	prefixes := []string{}
	for _, f := range New().Formats() {
		prefixes = append(prefixes, f.Prefix)
	}
	assert.Equal(t, []string{PrefixOAIDC, PrefixMARC21}, prefixes)
}
