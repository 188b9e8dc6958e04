package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	"github.com/totegamma/oaipmh/internal/domain"
	"github.com/totegamma/oaipmh/internal/oaipmh"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Config struct {
	Server Server `yaml:"server"`
	OAI    OAI    `yaml:"oai"`
}

type Server struct {
	Listen            string `yaml:"listen"`
	BaseURL           string `yaml:"baseURL"`
	PostgresDsn       string `yaml:"postgresDsn"`
	RedisAddr         string `yaml:"redisAddr"`
	RedisDB           int    `yaml:"redisDB"`
	MemcachedAddr     string `yaml:"memcachedAddr"`
	EnableTrace       bool   `yaml:"enableTrace"`
	TraceEndpoint     string `yaml:"traceEndpoint"`
	ResumptionBackend string `yaml:"resumptionBackend"` // postgres, redis, memory
}

type OAI struct {
	RepositoryName    string `yaml:"repositoryName"`
	AdminEmail        string `yaml:"adminEmail"`
	EarliestDatestamp string `yaml:"earliestDatestamp"`
	IDNamespace       string `yaml:"identifierNamespace"`
	Core              string `yaml:"core"`
	PageSize          int    `yaml:"pageSize"`
	SetField          string `yaml:"setField"`
	// SetQueries maps set names to queries. A MapSlice keeps file order,
	// which is the order ListSets reports them in.
	SetQueries          yaml.MapSlice     `yaml:"setQueries"`
	DefaultQuery        string            `yaml:"defaultQuery"`
	RecordFormatFilters map[string]string `yaml:"recordFormatFilters"`
	DeleteLifetimeDays  int               `yaml:"deleteLifetimeDays"`
	TokenLifetime       string            `yaml:"tokenLifetime"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, errors.Wrapf(err, "decode %s", path)
	}

	if config.Server.Listen == "" {
		config.Server.Listen = ":8000"
	}
	if config.Server.ResumptionBackend == "" {
		config.Server.ResumptionBackend = BackendPostgres
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks the settings that would otherwise only fail on the first
// harvest request.
func (c Config) Validate() error {
	switch c.Server.ResumptionBackend {
	case BackendPostgres, BackendMemory:
	case BackendRedis:
		if c.Server.RedisAddr == "" {
			return errors.New("redis resumption backend requires server.redisAddr")
		}
	default:
		return errors.Errorf("unknown resumption backend %q", c.Server.ResumptionBackend)
	}

	if _, err := c.Settings(); err != nil {
		return err
	}
	return nil
}

// Settings converts the oai section into the engine's immutable settings.
func (c Config) Settings() (domain.Settings, error) {
	o := c.OAI
	settings := domain.Settings{
		RepositoryName:      o.RepositoryName,
		AdminEmail:          o.AdminEmail,
		EarliestDatestamp:   o.EarliestDatestamp,
		IDNamespace:         o.IDNamespace,
		Core:                o.Core,
		PageSize:            o.PageSize,
		SetField:            o.SetField,
		DefaultQuery:        o.DefaultQuery,
		RecordFormatFilters: o.RecordFormatFilters,
		DeleteLifetime:      time.Duration(o.DeleteLifetimeDays) * 24 * time.Hour,
	}

	if settings.EarliestDatestamp != "" {
		if oaipmh.GranularityOf(settings.EarliestDatestamp) != oaipmh.GranularitySecond {
			return settings, errors.Errorf("earliestDatestamp %q must use %s", settings.EarliestDatestamp, oaipmh.Granularity)
		}
		if _, err := oaipmh.ParseDatestamp(settings.EarliestDatestamp, false); err != nil {
			return settings, errors.Wrap(err, "earliestDatestamp")
		}
	}
	if o.PageSize < 0 {
		return settings, errors.Errorf("pageSize must not be negative, got %d", o.PageSize)
	}
	if o.TokenLifetime != "" {
		d, err := time.ParseDuration(o.TokenLifetime)
		if err != nil {
			return settings, errors.Wrap(err, "tokenLifetime")
		}
		settings.TokenLifetime = d
	}

	for _, item := range o.SetQueries {
		q := domain.NamedQuery{Name: fmt.Sprint(item.Key), Query: fmt.Sprint(item.Value)}
		if _, err := domain.ParseQuery(q.Query); err != nil {
			return settings, errors.Wrapf(err, "set %s", q.Name)
		}
		settings.SetQueries = append(settings.SetQueries, q)
	}
	if o.DefaultQuery != "" {
		if _, err := domain.ParseQuery(o.DefaultQuery); err != nil {
			return settings, errors.Wrap(err, "defaultQuery")
		}
	}
	for prefix, raw := range o.RecordFormatFilters {
		if _, err := domain.ParseQuery(raw); err != nil {
			return settings, errors.Wrapf(err, "recordFormatFilters.%s", prefix)
		}
	}

	return settings, nil
}
