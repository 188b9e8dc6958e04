package domain

import "time"

// NamedQuery is a custom set: a label bound to a record filter query.
type NamedQuery struct {
	Name  string `yaml:"name"`
	Query string `yaml:"query"`
}

// Settings is the repository configuration consumed by the OAI engine.
// It is built once at startup and never modified afterwards.
type Settings struct {
	RepositoryName      string
	AdminEmail          string
	EarliestDatestamp   string
	IDNamespace         string
	Core                string
	PageSize            int
	SetField            string
	SetQueries          []NamedQuery
	DefaultQuery        string
	RecordFormatFilters map[string]string
	DeleteLifetime      time.Duration
	TokenLifetime       time.Duration
}

// HasSets reports whether any set hierarchy is configured.
func (s Settings) HasSets() bool {
	return s.SetField != "" || len(s.SetQueries) > 0
}

// CustomSetQuery resolves a set argument to a custom set query string. The
// argument may be either the configured name or the query string itself,
// which is also the setSpec ListSets reports.
func (s Settings) CustomSetQuery(spec string) (string, bool) {
	for _, q := range s.SetQueries {
		if q.Name == spec {
			return q.Query, true
		}
	}
	for _, q := range s.SetQueries {
		if q.Query == spec {
			return q.Query, true
		}
	}
	return "", false
}
