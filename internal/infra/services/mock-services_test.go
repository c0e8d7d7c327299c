package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSttRotatesTranscripts(t *testing.T) {
	stt := NewMockSttService()

	first, err := stt.Transcribe(context.Background(), []byte("audio"))
	require.NoError(t, err)
	second, err := stt.Transcribe(context.Background(), []byte("audio"))
	require.NoError(t, err)

	assert.Equal(t, mockTranscripts[0], first.Text)
	assert.Equal(t, mockTranscripts[1], second.Text)

	// Wraps around the canned list.
	for i := 0; i < len(mockTranscripts)-2; i++ {
		_, err = stt.Transcribe(context.Background(), []byte("audio"))
		require.NoError(t, err)
	}
	again, err := stt.Transcribe(context.Background(), []byte("audio"))
	require.NoError(t, err)
	assert.Equal(t, mockTranscripts[0], again.Text)
}

func TestMockSttFlagsEmptyAudio(t *testing.T) {
	stt := NewMockSttService()

	result, err := stt.Transcribe(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.NoSpeech)
	assert.Empty(t, result.Text)
}

func TestMockDialogueRotatesReplies(t *testing.T) {
	dialogue := NewMockDialogueService()

	first, err := dialogue.GenerateReply(context.Background(), nil)
	require.NoError(t, err)
	second, err := dialogue.GenerateReply(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, mockReplies[0], first)
	assert.Equal(t, mockReplies[1], second)
}

func TestMockTtsEmitsVoicedPcm(t *testing.T) {
	tts := NewMockTtsService()

	audio, err := tts.Synthesize(context.Background(), "Hello")
	require.NoError(t, err)

	// 16-bit samples sized to the utterance.
	assert.Equal(t, 160*(len("Hello")+1)*2, len(audio))
	assert.Equal(t, byte(0x40), audio[0])
	assert.Equal(t, byte(0x1f), audio[1])
}
