package usecase

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/totegamma/oaipmh/internal/domain"
	"github.com/totegamma/oaipmh/internal/oaipmh"
)

// listWindow is a validated ListIdentifiers/ListRecords request.
type listWindow struct {
	params       map[string]string
	from         time.Time
	until        time.Time
	cursor       int
	deletedCount int
	frozen       bool
}

// listRecords serves ListIdentifiers and ListRecords. The logical list is
// the deleted events in the window followed by the live records matching
// the set filter; cursor is an offset into that concatenation.
func (uc *ServerUsecase) listRecords(ctx context.Context, c call, req oaipmh.ListRequest, incoming map[string]string) (*oaipmh.Envelope, error) {
	ctx, span := tracer.Start(ctx, "OAI.Usecase.ListRecords")
	defer span.End()

	w, err := uc.listParams(ctx, req, incoming, c.now)
	if err != nil {
		return nil, err
	}

	prefix := w.params[oaipmh.ArgMetadataPrefix]
	set := w.params[oaipmh.ArgSet]
	pageSize := uc.settings.PageSize

	deleteFrom := w.from
	if lifetime := uc.settings.DeleteLifetime; lifetime > 0 {
		if cutoff := c.now.Add(-lifetime); cutoff.After(deleteFrom) {
			deleteFrom = cutoff
		}
	}

	deletedCount := w.deletedCount
	if !w.frozen {
		deletedCount, err = uc.tracker.CountDeleted(ctx, uc.settings.Core, deleteFrom, w.until)
		if err != nil {
			return nil, errors.Wrap(err, "count deleted records")
		}
	}

	var (
		headers []oaipmh.Header
		items   []oaipmh.Record
	)
	emitHeader := func(h oaipmh.Header) {
		if req.HeadersOnly {
			headers = append(headers, h)
		} else {
			items = append(items, oaipmh.Record{Header: h})
		}
	}

	current := w.cursor
	if current < deletedCount {
		n := min(pageSize, deletedCount-current)
		deleted, err := uc.tracker.ListDeleted(ctx, uc.settings.Core, deleteFrom, w.until, current, n)
		if err != nil {
			return nil, errors.Wrap(err, "list deleted records")
		}
		for _, d := range deleted {
			emitHeader(uc.deletedHeader(d))
		}
		// The prefix length is fixed for the session, so the cursor moves by
		// the requested span even if fewer events came back.
		current += n
	}

	filters, err := uc.listFilters(set, prefix)
	if err != nil {
		return nil, err
	}
	// Custom sets are advertised by their query string.
	headerSet := set
	if query, ok := uc.settings.CustomSetQuery(set); ok && set != "" {
		headerSet = query
	}
	offset := 0
	if current >= deletedCount {
		offset = current - deletedCount
	}
	result, err := uc.records.Search(ctx, domain.SearchQuery{
		From:    w.from,
		Until:   w.until,
		Offset:  offset,
		Limit:   w.cursor + pageSize - current,
		Filters: filters,
	})
	if err != nil {
		return nil, errors.Wrap(err, "search records")
	}
	for _, rec := range result.Records {
		item, supported, err := uc.nonDeleted(rec, prefix, req.HeadersOnly, headerSet, c.now)
		if err != nil {
			return nil, err
		}
		current++
		if !supported {
			continue
		}
		if req.HeadersOnly {
			headers = append(headers, item.Header)
		} else {
			items = append(items, item)
		}
	}

	listSize := deletedCount + result.Total
	var token *oaipmh.ResumptionToken
	if listSize > current {
		token, err = uc.saveCheckpoint(ctx, w, current, deletedCount, listSize, c.now)
		if err != nil {
			return nil, err
		}
	} else if w.cursor > 0 {
		token = &oaipmh.ResumptionToken{CompleteListSize: listSize, Cursor: w.cursor}
	}

	env := uc.envelope(c)
	if req.HeadersOnly {
		env.ListIdentifiers = &oaipmh.ListIdentifiers{Headers: headers, ResumptionToken: token}
	} else {
		env.ListRecords = &oaipmh.ListRecords{Records: items, ResumptionToken: token}
	}
	return env, nil
}

func (uc *ServerUsecase) saveCheckpoint(ctx context.Context, w listWindow, next, deletedCount, listSize int, now time.Time) (*oaipmh.ResumptionToken, error) {
	params := maps.Clone(w.params)
	delete(params, oaipmh.ArgVerb)
	delete(params, oaipmh.ArgResumptionToken)
	params[domain.ParamCursor] = strconv.Itoa(next)
	params[domain.ParamDeletedCount] = strconv.Itoa(deletedCount)

	expires := now.Add(uc.settings.TokenLifetime)
	token, err := uc.tokens.Save(ctx, params, expires)
	if err != nil {
		return nil, errors.Wrap(err, "save resumption token")
	}
	slog.DebugContext(
		ctx, "resumption token saved",
		slog.Int("cursor", next),
		slog.Int("completeListSize", listSize),
		slog.String("module", "oai"),
	)

	return &oaipmh.ResumptionToken{
		Value:            token,
		ExpirationDate:   oaipmh.FormatTime(expires),
		CompleteListSize: listSize,
		Cursor:           w.cursor,
	}, nil
}

// listParams resolves the effective listing parameters, either from a
// resumption token or from a fresh request, and validates them.
func (uc *ServerUsecase) listParams(ctx context.Context, req oaipmh.ListRequest, incoming map[string]string, now time.Time) (listWindow, error) {
	var w listWindow

	if req.ResumptionToken != "" {
		cp, err := uc.tokens.Find(ctx, req.ResumptionToken)
		if errors.Is(err, domain.ErrNotFound) {
			return w, domain.NewProtocolError(domain.CodeBadResumptionToken, "Invalid or expired resumption token")
		}
		if err != nil {
			return w, errors.Wrap(err, "load resumption token")
		}

		w.params = maps.Clone(cp.Params)
		if w.params == nil {
			w.params = map[string]string{}
		}
		maps.Copy(w.params, incoming)

		// cursor and deletedCount only ever come from the stored checkpoint.
		w.cursor = atoiOrZero(cp.Params[domain.ParamCursor])
		if v, ok := cp.Params[domain.ParamDeletedCount]; ok {
			w.deletedCount = atoiOrZero(v)
			w.frozen = true
		}
	} else {
		w.params = maps.Clone(incoming)
		w.cursor = 0
		uc.defaultDates(w.params, now)
	}
	delete(w.params, domain.ParamCursor)
	delete(w.params, domain.ParamDeletedCount)

	from, until, err := uc.validateDates(w.params[oaipmh.ArgFrom], w.params[oaipmh.ArgUntil])
	if err != nil {
		return w, err
	}
	w.from, w.until = from, until

	if set := w.params[oaipmh.ArgSet]; set != "" {
		if !uc.settings.HasSets() {
			return w, domain.NewProtocolError(domain.CodeNoSetHierarchy, "Sets not supported")
		}
		if _, ok := uc.settings.CustomSetQuery(set); !ok && uc.settings.SetField == "" {
			return w, domain.NewProtocolError(domain.CodeBadArgument, "Invalid set specified")
		}
	}

	prefix := w.params[oaipmh.ArgMetadataPrefix]
	if prefix == "" {
		return w, domain.NewProtocolError(domain.CodeBadArgument, "Missing metadataPrefix")
	}
	known := slices.ContainsFunc(uc.formatter.Formats(), func(f domain.MetadataFormat) bool {
		return f.Prefix == prefix
	})
	if !known {
		return w, domain.NewProtocolError(domain.CodeCannotDisseminateFormat, "Unknown Format")
	}

	return w, nil
}

// defaultDates fills in from/until for a fresh request so both carry the
// same granularity.
func (uc *ServerUsecase) defaultDates(params map[string]string, now time.Time) {
	if params[oaipmh.ArgFrom] == "" {
		from := uc.settings.EarliestDatestamp
		if until := params[oaipmh.ArgUntil]; until != "" && len(from) > len(until) {
			from = oaipmh.TruncateToDay(from)
		}
		params[oaipmh.ArgFrom] = from
	}
	if params[oaipmh.ArgUntil] == "" {
		until := oaipmh.FormatTime(now)
		if len(until) > len(params[oaipmh.ArgFrom]) {
			until = oaipmh.TruncateToDay(until)
		}
		params[oaipmh.ArgUntil] = until
	}
}

func (uc *ServerUsecase) validateDates(fromArg, untilArg string) (time.Time, time.Time, error) {
	badFormat := domain.NewProtocolError(domain.CodeBadArgument, "Bad Date Format")

	fg, ug := oaipmh.GranularityOf(fromArg), oaipmh.GranularityOf(untilArg)
	if fg == oaipmh.GranularityInvalid || ug == oaipmh.GranularityInvalid || fg != ug {
		return time.Time{}, time.Time{}, badFormat
	}
	from, err := oaipmh.ParseDatestamp(fromArg, false)
	if err != nil {
		return time.Time{}, time.Time{}, badFormat
	}
	until, err := oaipmh.ParseDatestamp(untilArg, true)
	if err != nil {
		return time.Time{}, time.Time{}, badFormat
	}

	if from.After(until) {
		return time.Time{}, time.Time{}, domain.NewProtocolError(domain.CodeBadArgument, "End date must be after start date")
	}
	earliest, err := oaipmh.ParseDatestamp(uc.settings.EarliestDatestamp, false)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrap(err, "earliest datestamp")
	}
	if from.Before(earliest) {
		return time.Time{}, time.Time{}, domain.NewProtocolError(domain.CodeBadArgument, "Start date must be after earliest date")
	}
	return from, until, nil
}

// listFilters turns the set argument, default query and format filter into
// record source filters.
func (uc *ServerUsecase) listFilters(set, prefix string) ([]domain.Query, error) {
	var filters []domain.Query

	if set != "" {
		if raw, ok := uc.settings.CustomSetQuery(set); ok {
			q, err := domain.ParseQuery(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "set %s", set)
			}
			filters = append(filters, q)
		} else if uc.settings.SetField != "" {
			filters = append(filters, domain.FieldEquals(uc.settings.SetField, set))
		}
	} else if uc.settings.DefaultQuery != "" {
		q, err := domain.ParseQuery(uc.settings.DefaultQuery)
		if err != nil {
			return nil, errors.Wrap(err, "default query")
		}
		filters = append(filters, q)
	}

	if raw := uc.settings.RecordFormatFilters[prefix]; raw != "" {
		q, err := domain.ParseQuery(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "record format filter for %s", prefix)
		}
		filters = append(filters, q)
	}
	return filters, nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
