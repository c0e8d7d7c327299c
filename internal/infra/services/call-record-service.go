package services

import (
	"context"
	"fmt"
	"voice-ai/internal/domain/entities"
	"voice-ai/internal/domain/interfaces/repository"
	repoconstants "voice-ai/internal/domain/interfaces/repository/constants"
	"voice-ai/internal/infra/logger"
)

// CallRecordService persists finished calls for audit. It upserts by session
// id, so retried persistence after a crash never duplicates a record.
type CallRecordService struct {
	CallRecordRepository repository.Repository[entities.CallSession]
	Logger               *logger.Logger
}

func NewCallRecordService(callRecordRepository repository.Repository[entities.CallSession], log *logger.Logger) *CallRecordService {
	return &CallRecordService{
		CallRecordRepository: callRecordRepository,
		Logger:               log,
	}
}

func (crs *CallRecordService) SaveCallRecord(ctx context.Context, session entities.CallSession) error {
	_, err := crs.CallRecordRepository.Update(ctx, repoconstants.CALL_RECORD_COLLECTION, session.SessionID, session)
	if err != nil {
		crs.Logger.Error(fmt.Sprintf("Failed to save call record %s: %v", session.SessionID, err))
		return err
	}
	return nil
}
