package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"voice-ai/internal/domain/dto"
	"voice-ai/internal/infra/logger"

	"github.com/cenkalti/backoff/v4"
)

// SttService converts a buffered audio segment into text by calling the
// speech-to-text collaborator over HTTP. Transient failures (network, 5xx,
// rate limit) are retried with backoff; other statuses fail immediately.
type SttService struct {
	Logger        *logger.Logger
	Host          string
	HttpClient    *http.Client
	Timeout       time.Duration
	MaxRetries    uint64
	RetryInterval time.Duration
}

func NewSttService(log *logger.Logger, host string, httpClient *http.Client, timeout time.Duration, maxRetries uint64, retryInterval time.Duration) *SttService {
	return &SttService{
		Logger:        log,
		Host:          host,
		HttpClient:    httpClient,
		Timeout:       timeout,
		MaxRetries:    maxRetries,
		RetryInterval: retryInterval,
	}
}

func (ss *SttService) Transcribe(ctx context.Context, audio []byte) (dto.TranscriptResult, error) {
	payload, err := json.Marshal(dto.TranscribeRequest{
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
	})
	if err != nil {
		ss.Logger.Error(fmt.Sprintf("Failed to marshal transcription payload: %v", err))
		return dto.TranscriptResult{}, err
	}

	var result dto.TranscriptResult
	err = retryRequest(ctx, ss.Timeout, ss.MaxRetries, ss.RetryInterval, func(cctx context.Context) error {
		req, err := http.NewRequestWithContext(cctx, http.MethodPost, ss.Host+"/transcribe", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := ss.HttpClient.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("transcription service returned %s", res.Status)
		}
		if res.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("transcription service returned %s", res.Status))
		}

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to unmarshal transcription response: %w", err))
		}
		return nil
	})
	if err != nil {
		ss.Logger.Error(fmt.Sprintf("Transcription failed after retries: %v", err))
		return dto.TranscriptResult{}, err
	}

	return result, nil
}
