package services

import (
	"context"
	"sync"
	"voice-ai/internal/domain/dto"
	"voice-ai/internal/domain/entities"
)

// Demo-mode collaborators. They answer immediately with canned content so the
// whole pipeline can be exercised locally without model inference or
// telephony cost.

var mockTranscripts = []string{
	"Hello, I need help with my account",
	"Can you help me with billing questions?",
	"I want to know about your services",
	"How do I cancel my subscription?",
	"What are your business hours?",
	"Can I speak to a manager?",
	"Thank you for your help",
}

var mockReplies = []string{
	"I understand you'd like assistance. How can I help you today?",
	"Thank you for that information. Let me help you with that.",
	"I see. Could you provide more details about your request?",
	"That's a great question. Let me explain that for you.",
	"I'll be happy to assist you with that. What else would you like to know?",
	"Is there anything specific you'd like help with?",
	"Thank you for calling. How else can I assist you today?",
}

type MockSttService struct {
	mu    sync.Mutex
	index int
}

func NewMockSttService() *MockSttService {
	return &MockSttService{}
}

func (ms *MockSttService) Transcribe(ctx context.Context, audio []byte) (dto.TranscriptResult, error) {
	if len(audio) == 0 {
		return dto.TranscriptResult{NoSpeech: true}, nil
	}

	ms.mu.Lock()
	text := mockTranscripts[ms.index%len(mockTranscripts)]
	ms.index++
	ms.mu.Unlock()

	return dto.TranscriptResult{Text: text}, nil
}

type MockDialogueService struct {
	mu    sync.Mutex
	index int
}

func NewMockDialogueService() *MockDialogueService {
	return &MockDialogueService{}
}

func (md *MockDialogueService) GenerateReply(ctx context.Context, history []entities.Transcript) (string, error) {
	md.mu.Lock()
	reply := mockReplies[md.index%len(mockReplies)]
	md.index++
	md.mu.Unlock()

	return reply, nil
}

type MockTtsService struct{}

func NewMockTtsService() *MockTtsService {
	return &MockTtsService{}
}

// Synthesize emits flat 16-bit PCM loud enough to register as voiced, sized
// to the utterance, so demo audio round-trips through the turn buffer's
// voice-activity estimate.
func (mt *MockTtsService) Synthesize(ctx context.Context, text string) ([]byte, error) {
	samples := 160 * (len(text) + 1)
	audio := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		// amplitude 8000 of 32768, well above the default energy threshold
		audio[2*i] = 0x40
		audio[2*i+1] = 0x1f
	}
	return audio, nil
}
