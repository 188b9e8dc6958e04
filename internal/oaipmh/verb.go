package oaipmh

// Verb is the closed set of OAI-PMH 2.0 requests.
type Verb int

const (
	VerbUnknown Verb = iota
	VerbIdentify
	VerbGetRecord
	VerbListIdentifiers
	VerbListRecords
	VerbListMetadataFormats
	VerbListSets
)

var verbNames = map[Verb]string{
	VerbIdentify:            "Identify",
	VerbGetRecord:           "GetRecord",
	VerbListIdentifiers:     "ListIdentifiers",
	VerbListRecords:         "ListRecords",
	VerbListMetadataFormats: "ListMetadataFormats",
	VerbListSets:            "ListSets",
}

// ParseVerb matches verb names case-sensitively.
func ParseVerb(s string) Verb {
	for v, name := range verbNames {
		if name == s {
			return v
		}
	}
	return VerbUnknown
}

func (v Verb) String() string {
	if name, ok := verbNames[v]; ok {
		return name
	}
	return "unknown"
}

// Request argument names.
const (
	ArgVerb            = "verb"
	ArgIdentifier      = "identifier"
	ArgMetadataPrefix  = "metadataPrefix"
	ArgFrom            = "from"
	ArgUntil           = "until"
	ArgSet             = "set"
	ArgResumptionToken = "resumptionToken"
)

var argumentNames = map[string]bool{
	ArgVerb:            true,
	ArgIdentifier:      true,
	ArgMetadataPrefix:  true,
	ArgFrom:            true,
	ArgUntil:           true,
	ArgSet:             true,
	ArgResumptionToken: true,
}

// IsArgument reports whether name is an OAI-PMH request argument.
func IsArgument(name string) bool {
	return argumentNames[name]
}

// Request is a parsed verb together with its own argument shape.
type Request interface {
	Verb() Verb
	isRequest()
}

type IdentifyRequest struct{}

type GetRecordRequest struct {
	Identifier     string
	MetadataPrefix string
}

// ListRequest serves both ListIdentifiers and ListRecords.
type ListRequest struct {
	HeadersOnly     bool
	MetadataPrefix  string
	From            string
	Until           string
	Set             string
	ResumptionToken string
}

type ListMetadataFormatsRequest struct {
	Identifier string
}

type ListSetsRequest struct {
	ResumptionToken string
}

func (IdentifyRequest) Verb() Verb            { return VerbIdentify }
func (GetRecordRequest) Verb() Verb           { return VerbGetRecord }
func (ListMetadataFormatsRequest) Verb() Verb { return VerbListMetadataFormats }
func (ListSetsRequest) Verb() Verb            { return VerbListSets }

func (r ListRequest) Verb() Verb {
	if r.HeadersOnly {
		return VerbListIdentifiers
	}
	return VerbListRecords
}

func (IdentifyRequest) isRequest()            {}
func (GetRecordRequest) isRequest()           {}
func (ListRequest) isRequest()                {}
func (ListMetadataFormatsRequest) isRequest() {}
func (ListSetsRequest) isRequest()            {}

// ParseRequest builds the typed request for a known verb. It returns nil for
// an unknown verb; argument validation is left to the verb handlers.
func ParseRequest(verb Verb, params map[string]string) Request {
	switch verb {
	case VerbIdentify:
		return IdentifyRequest{}
	case VerbGetRecord:
		return GetRecordRequest{
			Identifier:     params[ArgIdentifier],
			MetadataPrefix: params[ArgMetadataPrefix],
		}
	case VerbListIdentifiers, VerbListRecords:
		return ListRequest{
			HeadersOnly:     verb != VerbListRecords,
			MetadataPrefix:  params[ArgMetadataPrefix],
			From:            params[ArgFrom],
			Until:           params[ArgUntil],
			Set:             params[ArgSet],
			ResumptionToken: params[ArgResumptionToken],
		}
	case VerbListMetadataFormats:
		return ListMetadataFormatsRequest{Identifier: params[ArgIdentifier]}
	case VerbListSets:
		return ListSetsRequest{ResumptionToken: params[ArgResumptionToken]}
	case VerbUnknown:
		return nil
	}
	return nil
}
