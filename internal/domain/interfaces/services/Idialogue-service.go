package Iservices

import (
	"context"
	"voice-ai/internal/domain/entities"
)

type IDialogueService interface {
	GenerateReply(ctx context.Context, history []entities.Transcript) (string, error)
}
