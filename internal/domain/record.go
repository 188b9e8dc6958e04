package domain

import (
	"net/url"
	"time"
)

// Record is a live index entry as seen by the OAI engine.
type Record struct {
	ID          string              `json:"id"`
	LastIndexed time.Time           `json:"lastIndexed"`
	Fields      map[string][]string `json:"fields"`
}

// Values returns the values of a raw field, or nil.
func (r Record) Values(field string) []string {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[field]
}

// First returns the first value of a raw field.
func (r Record) First(field string) string {
	values := r.Values(field)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// DeletedRecord is a deletion event read from the change tracker.
type DeletedRecord struct {
	ID      string    `json:"id"`
	Deleted time.Time `json:"deleted"`
}

// TrackerEntry mirrors one change tracker row.
type TrackerEntry struct {
	Core             string     `json:"core"`
	ID               string     `json:"id"`
	FirstIndexed     *time.Time `json:"firstIndexed,omitempty"`
	LastIndexed      *time.Time `json:"lastIndexed,omitempty"`
	LastRecordChange *time.Time `json:"lastRecordChange,omitempty"`
	Deleted          *time.Time `json:"deleted,omitempty"`
}

// IsDeleted reports whether the entry carries a deletion timestamp.
func (e TrackerEntry) IsDeleted() bool {
	return e.Deleted != nil && !e.Deleted.IsZero()
}

// SearchQuery selects non-deleted records whose last indexed time falls in
// [From, Until]. Results are ordered by last indexed time, then id.
type SearchQuery struct {
	From    time.Time
	Until   time.Time
	Offset  int
	Limit   int
	Filters []Query
}

// SearchResult is one page of records plus the total number of matches.
type SearchResult struct {
	Records []Record
	Total   int
}

// FacetValue is one distinct value of a field across the index.
type FacetValue struct {
	Value       string `json:"value"`
	DisplayText string `json:"displayText"`
	Count       int    `json:"count"`
}

// MetadataFormat describes a metadataPrefix the repository can disseminate.
type MetadataFormat struct {
	Prefix    string
	Schema    string
	Namespace string
}

// Checkpoint is a persisted listing position referenced by a resumption token.
type Checkpoint struct {
	Token   string
	Params  map[string]string
	Expires time.Time
}

// EncodeParams serializes listing parameters with keys sorted so equal
// parameter sets always produce the same string.
func EncodeParams(params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}

// DecodeParams reverses EncodeParams.
func DecodeParams(encoded string) (map[string]string, error) {
	values, err := url.ParseQuery(encoded)
	if err != nil {
		return nil, err
	}
	params := make(map[string]string, len(values))
	for k := range values {
		params[k] = values.Get(k)
	}
	return params, nil
}
