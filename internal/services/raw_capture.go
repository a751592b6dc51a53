// RawCaptureStage (layer A): append-only audit trail of upstream calls.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/finvista/go-aa-sync-backend/internal/domain"
	"github.com/finvista/go-aa-sync-backend/internal/repo"
)

// RawCaptureStage persists one audit row per outbound upstream call. The
// audit trail is best-effort: it is not transactionally linked to the data
// it describes, and a storage failure here must never stop the pipeline.
type RawCaptureStage struct {
	DB *gorm.DB
}

// Record appends an audit row for an upstream call made on behalf of
// userID. The row is durable once Record returns nil. On storage failure
// the error is logged and returned; callers treat it as a non-fatal step
// failure and continue.
func (s *RawCaptureStage) Record(ctx context.Context, userID, endpoint, method, requestPayload, responsePayload string, httpStatus int, latencyMs int64) (*domain.AuditCall, error) {
	call := &domain.AuditCall{
		UserID:          userID,
		Endpoint:        endpoint,
		Method:          method,
		RequestPayload:  requestPayload,
		ResponsePayload: responsePayload,
		HTTPStatus:      httpStatus,
		LatencyMs:       latencyMs,
	}
	if err := repo.CreateAuditCall(ctx, s.DB, call); err != nil {
		log.Warn().
			Err(err).
			Str("user_id", userID).
			Str("endpoint", endpoint).
			Msg("audit capture failed; continuing")
		return nil, err
	}
	return call, nil
}
