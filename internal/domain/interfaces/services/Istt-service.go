package Iservices

import (
	"context"
	"voice-ai/internal/domain/dto"
)

type ISttService interface {
	Transcribe(ctx context.Context, audio []byte) (dto.TranscriptResult, error)
}
