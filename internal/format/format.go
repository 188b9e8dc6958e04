package format

import (
	"bytes"
	"encoding/xml"
	"io"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/totegamma/oaipmh/internal/domain"
)

const (
	PrefixOAIDC  = "oai_dc"
	PrefixMARC21 = "marc21"

	// FieldFullRecord holds the MARCXML source of a record.
	FieldFullRecord = "fullrecord"
)

var formats = []domain.MetadataFormat{
	{
		Prefix:    PrefixOAIDC,
		Schema:    "http://www.openarchives.org/OAI/2.0/oai_dc.xsd",
		Namespace: "http://www.openarchives.org/OAI/2.0/oai_dc/",
	},
	{
		Prefix:    PrefixMARC21,
		Schema:    "http://www.loc.gov/standards/marcxml/schema/MARC21slim.xsd",
		Namespace: "http://www.loc.gov/MARC21/slim",
	},
}

// Formatter renders index records as oai_dc or MARCXML fragments.
type Formatter struct{}

func New() *Formatter {
	return &Formatter{}
}

// Formats lists every metadata format the repository disseminates.
func (f *Formatter) Formats() []domain.MetadataFormat {
	out := make([]domain.MetadataFormat, len(formats))
	copy(out, formats)
	return out
}

// Supports reports whether rec can be rendered in prefix.
func (f *Formatter) Supports(rec domain.Record, prefix string) bool {
	switch prefix {
	case PrefixOAIDC:
		return true
	case PrefixMARC21:
		return strings.HasPrefix(strings.TrimSpace(rec.First(FieldFullRecord)), "<")
	default:
		return false
	}
}

// Render returns the metadata fragment for rec. It returns
// domain.ErrUnsupportedFormat when the record has no representation in
// prefix, and any other error when the stored record is corrupt.
func (f *Formatter) Render(rec domain.Record, prefix string) (string, error) {
	if !f.Supports(rec, prefix) {
		return "", domain.ErrUnsupportedFormat
	}
	switch prefix {
	case PrefixOAIDC:
		return renderDublinCore(rec)
	case PrefixMARC21:
		return renderMARC(rec)
	}
	return "", domain.ErrUnsupportedFormat
}

type dublinCore struct {
	XMLName        xml.Name `xml:"oai_dc:dc"`
	OAIDC          string   `xml:"xmlns:oai_dc,attr"`
	DC             string   `xml:"xmlns:dc,attr"`
	XSI            string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`

	Title       []string `xml:"dc:title"`
	Creator     []string `xml:"dc:creator"`
	Contributor []string `xml:"dc:contributor"`
	Subject     []string `xml:"dc:subject"`
	Description []string `xml:"dc:description"`
	Publisher   []string `xml:"dc:publisher"`
	Date        []string `xml:"dc:date"`
	Type        []string `xml:"dc:type"`
	Identifier  []string `xml:"dc:identifier"`
	Language    []string `xml:"dc:language"`
}

func renderDublinCore(rec domain.Record) (string, error) {
	dc := dublinCore{
		OAIDC:          "http://www.openarchives.org/OAI/2.0/oai_dc/",
		DC:             "http://purl.org/dc/elements/1.1/",
		XSI:            "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: "http://www.openarchives.org/OAI/2.0/oai_dc/ http://www.openarchives.org/OAI/2.0/oai_dc.xsd",
		Title:          rec.Values("title"),
		Creator:        rec.Values("author"),
		Contributor:    rec.Values("author2"),
		Subject:        rec.Values("topic"),
		Description:    rec.Values("description"),
		Publisher:      rec.Values("publisher"),
		Date:           rec.Values("publishDate"),
		Type:           rec.Values("format"),
		Identifier:     slices.Concat(rec.Values("isbn"), rec.Values("issn")),
		Language:       rec.Values("language"),
	}
	body, err := xml.Marshal(dc)
	if err != nil {
		return "", errors.Wrap(err, "render oai_dc")
	}
	return string(body), nil
}

// renderMARC returns the stored MARCXML without its XML declaration after
// checking that it is well-formed.
func renderMARC(rec domain.Record) (string, error) {
	raw := strings.TrimSpace(rec.First(FieldFullRecord))
	if strings.HasPrefix(raw, "<?xml") {
		end := strings.Index(raw, "?>")
		if end < 0 {
			return "", errors.Errorf("record %s: malformed XML declaration", rec.ID)
		}
		raw = strings.TrimSpace(raw[end+2:])
	}

	dec := xml.NewDecoder(bytes.NewReader([]byte(raw)))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrapf(err, "record %s: corrupt MARCXML", rec.ID)
		}
	}
	return raw, nil
}
