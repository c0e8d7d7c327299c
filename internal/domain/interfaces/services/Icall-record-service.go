package Iservices

import (
	"context"
	"voice-ai/internal/domain/entities"
)

// ICallRecordService persists a finished call for audit. Invoked by the
// session registry right before a session is removed from the live table.
type ICallRecordService interface {
	SaveCallRecord(ctx context.Context, session entities.CallSession) error
}
