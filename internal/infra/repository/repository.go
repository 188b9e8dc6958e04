package repository

import (
	"go.opentelemetry.io/otel"

	"github.com/totegamma/oaipmh/internal/usecase"
)

var tracer = otel.Tracer("repository")

var (
	_ usecase.ChangeTracker       = (*ChangeTrackerRepository)(nil)
	_ usecase.ChangeTrackerWriter = (*ChangeTrackerRepository)(nil)
	_ usecase.ResumptionStore     = (*ResumptionRepository)(nil)
	_ usecase.ResumptionStore     = (*RedisResumptionStore)(nil)
	_ usecase.ResumptionStore     = (*MemoryResumptionStore)(nil)
	_ usecase.RecordSource        = (*RecordRepository)(nil)
	_ usecase.RecordIndex         = (*RecordRepository)(nil)
)
