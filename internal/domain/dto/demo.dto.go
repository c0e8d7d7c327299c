package dto

import "voice-ai/internal/domain/entities"

type DemoChatRequest struct {
	UserInput      string `json:"user_input"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type DemoChatResponse struct {
	ConversationID      string                `json:"conversation_id"`
	UserMessage         entities.Transcript   `json:"user_message"`
	AIResponse          entities.Transcript   `json:"ai_response"`
	ConversationHistory []entities.Transcript `json:"conversation_history"`
}
