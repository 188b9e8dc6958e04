package oaipmh

import (
	"encoding/xml"
	"sort"
	"time"
)

const (
	Namespace           = "http://www.openarchives.org/OAI/2.0/"
	XSINamespace        = "http://www.w3.org/2001/XMLSchema-instance"
	SchemaLocation      = Namespace + " http://www.openarchives.org/OAI/2.0/OAI-PMH.xsd"
	IdentifierNamespace = "http://www.openarchives.org/OAI/2.0/oai-identifier"
	IdentifierSchema    = IdentifierNamespace + " http://www.openarchives.org/OAI/2.0/oai-identifier.xsd"

	DCNamespace = "http://www.openarchives.org/OAI/2.0/oai_dc/"
	DCSchema    = "http://www.openarchives.org/OAI/2.0/oai_dc.xsd"
	DCElements  = "http://purl.org/dc/elements/1.1/"

	ProtocolVersion  = "2.0"
	DeletedTransient = "transient"
	StatusDeleted    = "deleted"
)

// Envelope is the OAI-PMH root element. Exactly one of the verb bodies or
// Error is set.
type Envelope struct {
	XMLName        xml.Name    `xml:"OAI-PMH"`
	XMLNS          string      `xml:"xmlns,attr"`
	XSI            string      `xml:"xmlns:xsi,attr"`
	SchemaLocation string      `xml:"xsi:schemaLocation,attr"`
	ResponseDate   string      `xml:"responseDate"`
	Request        RequestEcho `xml:"request"`

	Error               *Error               `xml:"error,omitempty"`
	Identify            *Identify            `xml:"Identify,omitempty"`
	GetRecord           *GetRecord           `xml:"GetRecord,omitempty"`
	ListIdentifiers     *ListIdentifiers     `xml:"ListIdentifiers,omitempty"`
	ListRecords         *ListRecords         `xml:"ListRecords,omitempty"`
	ListMetadataFormats *ListMetadataFormats `xml:"ListMetadataFormats,omitempty"`
	ListSets            *ListSets            `xml:"ListSets,omitempty"`
}

// RequestEcho is the <request> element: base URL text plus one attribute per
// echoed argument.
type RequestEcho struct {
	Attrs   []xml.Attr `xml:",any,attr"`
	BaseURL string     `xml:",chardata"`
}

type Error struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type Identify struct {
	RepositoryName    string       `xml:"repositoryName"`
	BaseURL           string       `xml:"baseURL"`
	ProtocolVersion   string       `xml:"protocolVersion"`
	AdminEmail        string       `xml:"adminEmail"`
	EarliestDatestamp string       `xml:"earliestDatestamp"`
	DeletedRecord     string       `xml:"deletedRecord"`
	Granularity       string       `xml:"granularity"`
	Description       *Description `xml:"description,omitempty"`
}

type Description struct {
	OAIIdentifier *OAIIdentifier `xml:"oai-identifier,omitempty"`
}

type OAIIdentifier struct {
	XMLNS                string `xml:"xmlns,attr"`
	SchemaLocation       string `xml:"xsi:schemaLocation,attr"`
	Scheme               string `xml:"scheme"`
	RepositoryIdentifier string `xml:"repositoryIdentifier"`
	Delimiter            string `xml:"delimiter"`
	SampleIdentifier     string `xml:"sampleIdentifier"`
}

type Header struct {
	Status     string   `xml:"status,attr,omitempty"`
	Identifier string   `xml:"identifier"`
	Datestamp  string   `xml:"datestamp"`
	SetSpec    []string `xml:"setSpec"`
}

// Metadata wraps a formatter's XML fragment verbatim.
type Metadata struct {
	Inner string `xml:",innerxml"`
}

type Record struct {
	Header   Header    `xml:"header"`
	Metadata *Metadata `xml:"metadata,omitempty"`
}

type ResumptionToken struct {
	Value            string `xml:",chardata"`
	ExpirationDate   string `xml:"expirationDate,attr,omitempty"`
	CompleteListSize int    `xml:"completeListSize,attr"`
	Cursor           int    `xml:"cursor,attr"`
}

type GetRecord struct {
	Record Record `xml:"record"`
}

type ListIdentifiers struct {
	Headers         []Header         `xml:"header"`
	ResumptionToken *ResumptionToken `xml:"resumptionToken,omitempty"`
}

type ListRecords struct {
	Records         []Record         `xml:"record"`
	ResumptionToken *ResumptionToken `xml:"resumptionToken,omitempty"`
}

type MetadataFormat struct {
	MetadataPrefix    string `xml:"metadataPrefix"`
	Schema            string `xml:"schema"`
	MetadataNamespace string `xml:"metadataNamespace"`
}

type ListMetadataFormats struct {
	Formats []MetadataFormat `xml:"metadataFormat"`
}

type Set struct {
	SetSpec        string          `xml:"setSpec"`
	SetName        string          `xml:"setName"`
	SetDescription *SetDescription `xml:"setDescription,omitempty"`
}

// SetDescription wraps an oai_dc container, as the OAI-PMH schema requires
// an element inside <setDescription>.
type SetDescription struct {
	DC SetDC `xml:"oai_dc:dc"`
}

type SetDC struct {
	OAIDC          string `xml:"xmlns:oai_dc,attr"`
	DC             string `xml:"xmlns:dc,attr"`
	SchemaLocation string `xml:"xsi:schemaLocation,attr"`
	Description    string `xml:"dc:description"`
}

func NewSetDescription(text string) *SetDescription {
	return &SetDescription{DC: SetDC{
		OAIDC:          DCNamespace,
		DC:             DCElements,
		SchemaLocation: DCNamespace + " " + DCSchema,
		Description:    text,
	}}
}

type ListSets struct {
	Sets []Set `xml:"set"`
}

// NewEnvelope prepares the fixed part of a response. When echo is set each
// OAI-PMH argument is repeated, in sorted order, as an attribute of <request>.
// Any other parameter is never echoed.
func NewEnvelope(now time.Time, baseURL string, params map[string]string, echo bool) *Envelope {
	env := &Envelope{
		XMLNS:          Namespace,
		XSI:            XSINamespace,
		SchemaLocation: SchemaLocation,
		ResponseDate:   FormatTime(now),
		Request:        RequestEcho{BaseURL: baseURL},
	}
	if echo {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !IsArgument(k) {
				continue
			}
			env.Request.Attrs = append(env.Request.Attrs, xml.Attr{
				Name:  xml.Name{Local: k},
				Value: params[k],
			})
		}
	}
	return env
}

// Marshal serializes the envelope with an XML declaration.
func (e *Envelope) Marshal() (string, error) {
	body, err := xml.Marshal(e)
	if err != nil {
		return "", err
	}
	return xml.Header + string(body), nil
}
