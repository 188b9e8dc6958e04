package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/oaipmh/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  postgresDsn: host=localhost dbname=oai
  baseURL: https://example.org/OAI/Server
oai:
  repositoryName: Example Library
  identifierNamespace: example
  earliestDatestamp: "2001-01-01T00:00:00Z"
  pageSize: 50
  setField: building
  setQueries:
    ebooks: format:eBook
    main: building:"Main Library"
  recordFormatFilters:
    marc21: fullrecord:*
  deleteLifetimeDays: 30
  tokenLifetime: 12h
`)

	conf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8000", conf.Server.Listen)
	assert.Equal(t, BackendPostgres, conf.Server.ResumptionBackend)

	settings, err := conf.Settings()
	require.NoError(t, err)
	assert.Equal(t, "Example Library", settings.RepositoryName)
	assert.Equal(t, 50, settings.PageSize)
	assert.Equal(t, 30*24*time.Hour, settings.DeleteLifetime)
	assert.Equal(t, 12*time.Hour, settings.TokenLifetime)
	assert.Equal(t, []domain.NamedQuery{
		{Name: "ebooks", Query: "format:eBook"},
		{Name: "main", Query: `building:"Main Library"`},
	}, settings.SetQueries)
	assert.Equal(t, "fullrecord:*", settings.RecordFormatFilters["marc21"])
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"backend":  "server:\n  resumptionBackend: etcd\n",
		"redis":    "server:\n  resumptionBackend: redis\n",
		"earliest": "oai:\n  earliestDatestamp: \"2001-01-01\"\n",
		"lifetime": "oai:\n  tokenLifetime: forever\n",
		"query":    "oai:\n  setQueries:\n    broken: \"no colon here\"\n",
		"pageSize": "oai:\n  pageSize: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
