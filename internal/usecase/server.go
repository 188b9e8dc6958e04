package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/totegamma/oaipmh/internal/domain"
	"github.com/totegamma/oaipmh/internal/oaipmh"
)

var tracer = otel.Tracer("usecase")

const (
	outcomeOK       = "ok"
	outcomeInternal = "internal"
)

// ServerUsecase is the OAI-PMH protocol engine.
type ServerUsecase struct {
	settings  domain.Settings
	tokens    ResumptionStore
	tracker   ChangeTracker
	records   RecordSource
	formatter MetadataFormatter
	observer  Observer
	now       func() time.Time
}

type ServerOption func(*ServerUsecase)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) ServerOption {
	return func(uc *ServerUsecase) {
		uc.now = now
	}
}

func WithObserver(o Observer) ServerOption {
	return func(uc *ServerUsecase) {
		uc.observer = o
	}
}

func NewServerUsecase(
	settings domain.Settings,
	tokens ResumptionStore,
	tracker ChangeTracker,
	records RecordSource,
	formatter MetadataFormatter,
	opts ...ServerOption,
) *ServerUsecase {
	if settings.RepositoryName == "" {
		settings.RepositoryName = domain.DefaultRepositoryName
	}
	if settings.EarliestDatestamp == "" {
		settings.EarliestDatestamp = domain.DefaultEarliestDatestamp
	}
	if settings.Core == "" {
		settings.Core = domain.DefaultCore
	}
	if settings.PageSize <= 0 {
		settings.PageSize = domain.DefaultPageSize
	}
	if settings.TokenLifetime <= 0 {
		settings.TokenLifetime = domain.DefaultTokenLifetime
	}

	uc := &ServerUsecase{
		settings:  settings,
		tokens:    tokens,
		tracker:   tracker,
		records:   records,
		formatter: formatter,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// call carries the per-request values every verb handler needs.
type call struct {
	baseURL string
	raw     map[string]string
	now     time.Time
}

// Handle answers one OAI-PMH request. Protocol problems are reported inside
// the returned document; a non-nil error means an internal failure that the
// protocol has no code for.
func (uc *ServerUsecase) Handle(ctx context.Context, baseURL string, params map[string]string) (string, error) {
	verb := params[oaipmh.ArgVerb]
	ctx, span := tracer.Start(ctx, "OAI.Usecase.Handle", trace.WithAttributes(attribute.String("verb", verb)))
	defer span.End()

	c := call{baseURL: baseURL, raw: params, now: uc.now()}

	env, err := uc.dispatch(ctx, c, present(params))
	outcome := outcomeOK
	if err != nil {
		var perr *domain.ProtocolError
		if !errors.As(err, &perr) {
			span.RecordError(err)
			logInternal(ctx, "OAI request failed", err)
			uc.observe(verb, outcomeInternal, c.now)
			return "", err
		}
		outcome = string(perr.Code)
		env = oaipmh.NewEnvelope(c.now, baseURL, params, perr.Code.EchoesRequest())
		env.Error = &oaipmh.Error{Code: string(perr.Code), Message: perr.Message}
	}

	out, err := env.Marshal()
	if err != nil {
		span.RecordError(err)
		uc.observe(verb, outcomeInternal, c.now)
		return "", errors.Wrap(err, "marshal response")
	}
	uc.observe(verb, outcome, c.now)
	return out, nil
}

func (uc *ServerUsecase) observe(verb, outcome string, start time.Time) {
	if uc.observer == nil {
		return
	}
	if oaipmh.ParseVerb(verb) == oaipmh.VerbUnknown {
		verb = "unknown"
	}
	uc.observer.RecordRequest(verb, outcome, uc.now().Sub(start))
}

func (uc *ServerUsecase) dispatch(ctx context.Context, c call, params map[string]string) (*oaipmh.Envelope, error) {
	if params[oaipmh.ArgVerb] == "" {
		return nil, domain.NewProtocolError(domain.CodeBadVerb, "Missing Verb Argument")
	}

	switch req := oaipmh.ParseRequest(oaipmh.ParseVerb(params[oaipmh.ArgVerb]), params).(type) {
	case oaipmh.IdentifyRequest:
		return uc.identify(c), nil
	case oaipmh.GetRecordRequest:
		return uc.getRecord(ctx, c, req)
	case oaipmh.ListRequest:
		return uc.listRecords(ctx, c, req, params)
	case oaipmh.ListMetadataFormatsRequest:
		return uc.listMetadataFormats(ctx, c, req)
	case oaipmh.ListSetsRequest:
		return uc.listSets(ctx, c, req)
	default:
		return nil, domain.NewProtocolError(domain.CodeBadVerb, "Illegal OAI Verb")
	}
}

func (uc *ServerUsecase) envelope(c call) *oaipmh.Envelope {
	return oaipmh.NewEnvelope(c.now, c.baseURL, c.raw, true)
}

func (uc *ServerUsecase) identify(c call) *oaipmh.Envelope {
	env := uc.envelope(c)
	env.Identify = &oaipmh.Identify{
		RepositoryName:    uc.settings.RepositoryName,
		BaseURL:           c.baseURL,
		ProtocolVersion:   oaipmh.ProtocolVersion,
		AdminEmail:        uc.settings.AdminEmail,
		EarliestDatestamp: uc.settings.EarliestDatestamp,
		DeletedRecord:     oaipmh.DeletedTransient,
		Granularity:       oaipmh.Granularity,
	}
	if ns := uc.settings.IDNamespace; ns != "" {
		env.Identify.Description = &oaipmh.Description{
			OAIIdentifier: &oaipmh.OAIIdentifier{
				XMLNS:                oaipmh.IdentifierNamespace,
				SchemaLocation:       oaipmh.IdentifierSchema,
				Scheme:               "oai",
				RepositoryIdentifier: ns,
				Delimiter:            ":",
				SampleIdentifier:     "oai:" + ns + ":123456",
			},
		}
	}
	return env
}

func (uc *ServerUsecase) getRecord(ctx context.Context, c call, req oaipmh.GetRecordRequest) (*oaipmh.Envelope, error) {
	if req.MetadataPrefix == "" {
		return nil, domain.NewProtocolError(domain.CodeBadArgument, "Missing Metadata Prefix")
	}
	if req.Identifier == "" {
		return nil, domain.NewProtocolError(domain.CodeBadArgument, "Missing Identifier")
	}

	id, ok := uc.stripID(req.Identifier)
	if !ok {
		return nil, domain.NewProtocolError(domain.CodeIDDoesNotExist, "Unknown Record")
	}

	env := uc.envelope(c)
	rec, err := uc.records.Load(ctx, id)
	if err == nil {
		item, supported, err := uc.nonDeleted(rec, req.MetadataPrefix, false, "", c.now)
		if err != nil {
			return nil, err
		}
		if !supported {
			return nil, domain.NewProtocolError(domain.CodeCannotDisseminateFormat, "Unknown Format")
		}
		env.GetRecord = &oaipmh.GetRecord{Record: item}
		return env, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, errors.Wrap(err, "load record")
	}

	entry, err := uc.tracker.Retrieve(ctx, uc.settings.Core, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, errors.Wrap(err, "retrieve change tracker entry")
	}
	if err != nil || !entry.IsDeleted() {
		return nil, domain.NewProtocolError(domain.CodeIDDoesNotExist, "Unknown Record")
	}

	env.GetRecord = &oaipmh.GetRecord{
		Record: oaipmh.Record{Header: uc.deletedHeader(domain.DeletedRecord{ID: entry.ID, Deleted: *entry.Deleted})},
	}
	return env, nil
}

func (uc *ServerUsecase) listMetadataFormats(ctx context.Context, c call, req oaipmh.ListMetadataFormatsRequest) (*oaipmh.Envelope, error) {
	var rec *domain.Record
	if req.Identifier != "" {
		id, ok := uc.stripID(req.Identifier)
		if !ok {
			return nil, domain.NewProtocolError(domain.CodeIDDoesNotExist, "Unknown Record")
		}
		loaded, err := uc.records.Load(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewProtocolError(domain.CodeIDDoesNotExist, "Unknown Record")
		}
		if err != nil {
			return nil, errors.Wrap(err, "load record")
		}
		rec = &loaded
	}

	body := &oaipmh.ListMetadataFormats{}
	for _, f := range uc.formatter.Formats() {
		if rec != nil && !uc.formatter.Supports(*rec, f.Prefix) {
			continue
		}
		body.Formats = append(body.Formats, oaipmh.MetadataFormat{
			MetadataPrefix:    f.Prefix,
			Schema:            f.Schema,
			MetadataNamespace: f.Namespace,
		})
	}
	if len(body.Formats) == 0 {
		return nil, domain.NewProtocolError(domain.CodeNoMetadataFormats, "No metadata formats available for item")
	}

	env := uc.envelope(c)
	env.ListMetadataFormats = body
	return env, nil
}

func (uc *ServerUsecase) listSets(ctx context.Context, c call, req oaipmh.ListSetsRequest) (*oaipmh.Envelope, error) {
	if req.ResumptionToken != "" {
		return nil, domain.NewProtocolError(domain.CodeBadResumptionToken, "Invalid resumption token")
	}
	if !uc.settings.HasSets() {
		return nil, domain.NewProtocolError(domain.CodeNoSetHierarchy, "Sets not supported")
	}

	body := &oaipmh.ListSets{}
	if field := uc.settings.SetField; field != "" {
		facets, err := uc.records.Facets(ctx, field)
		if err != nil {
			return nil, errors.Wrap(err, "cannot find sets")
		}
		for _, f := range facets {
			name := f.DisplayText
			if name == "" {
				name = f.Value
			}
			body.Sets = append(body.Sets, oaipmh.Set{SetSpec: f.Value, SetName: name})
		}
	}
	for _, q := range uc.settings.SetQueries {
		body.Sets = append(body.Sets, oaipmh.Set{
			SetSpec:        q.Query,
			SetName:        q.Name,
			SetDescription: oaipmh.NewSetDescription(q.Query),
		})
	}

	env := uc.envelope(c)
	env.ListSets = body
	return env, nil
}

// nonDeleted builds the <record> for a live index entry. supported is false
// when the record has no representation in prefix.
func (uc *ServerUsecase) nonDeleted(rec domain.Record, prefix string, headersOnly bool, set string, now time.Time) (oaipmh.Record, bool, error) {
	body, err := uc.formatter.Render(rec, prefix)
	if errors.Is(err, domain.ErrUnsupportedFormat) || (err == nil && body == "") {
		return oaipmh.Record{}, false, nil
	}
	if err != nil {
		return oaipmh.Record{}, false, errors.Wrapf(err, "render record %s as %s", rec.ID, prefix)
	}

	var sets []string
	if uc.settings.SetField != "" {
		for _, v := range rec.Values(uc.settings.SetField) {
			sets = appendUnique(sets, v)
		}
	}
	if set != "" {
		sets = appendUnique(sets, set)
	}

	datestamp := rec.LastIndexed
	if datestamp.IsZero() {
		datestamp = now
	}

	item := oaipmh.Record{
		Header: oaipmh.Header{
			Identifier: uc.prefixID(rec.ID),
			Datestamp:  oaipmh.FormatTime(datestamp),
			SetSpec:    sets,
		},
	}
	if !headersOnly {
		item.Metadata = &oaipmh.Metadata{Inner: body}
	}
	return item, true, nil
}

func (uc *ServerUsecase) deletedHeader(d domain.DeletedRecord) oaipmh.Header {
	return oaipmh.Header{
		Status:     oaipmh.StatusDeleted,
		Identifier: uc.prefixID(d.ID),
		Datestamp:  oaipmh.FormatTime(d.Deleted),
	}
}

func (uc *ServerUsecase) prefixID(id string) string {
	if uc.settings.IDNamespace == "" {
		return id
	}
	return "oai:" + uc.settings.IDNamespace + ":" + id
}

// stripID removes the oai:<namespace>: prefix. ok is false when a namespace
// is configured and the identifier does not carry it.
func (uc *ServerUsecase) stripID(identifier string) (string, bool) {
	if uc.settings.IDNamespace == "" {
		return identifier, true
	}
	prefix := "oai:" + uc.settings.IDNamespace + ":"
	if len(identifier) > len(prefix) && identifier[:len(prefix)] == prefix {
		return identifier[len(prefix):], true
	}
	return "", false
}

// present drops arguments with empty values; OAI treats them as missing.
func present(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func logInternal(ctx context.Context, msg string, err error) {
	slog.ErrorContext(
		ctx, msg,
		slog.String("error", err.Error()),
		slog.String("module", "oai"),
	)
}
