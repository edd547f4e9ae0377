package rules

import (
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/downpay/internal/domain"
)

// EngineVersion is recorded on every evaluation this engine produces.
const EngineVersion = "rules/v1"

// NewEvaluation wraps a result in the record that is stored, cached, and
// returned to callers. start is when processing of the quote began.
func NewEvaluation(tenantID string, table *CompiledTable, quote *domain.Quote, result *domain.QuoteResult, traceID string, start time.Time) *domain.Evaluation {
	return &domain.Evaluation{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		QuoteID:      quote.ID,
		TableID:      table.ID,
		TableVersion: table.Version,
		Quote:        quote,
		Result:       result,
		Timestamp:    time.Now().UTC(),
		Metadata: domain.EvaluationMetadata{
			TraceID:        traceID,
			TotalMs:        time.Since(start).Milliseconds(),
			RulesEvaluated: len(table.Rules()),
			EngineVersion:  EngineVersion,
		},
	}
}
