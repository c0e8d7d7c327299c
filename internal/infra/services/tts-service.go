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

// TtsService converts agent utterance text into audio by calling the
// text-to-speech collaborator.
type TtsService struct {
	Logger        *logger.Logger
	Host          string
	HttpClient    *http.Client
	Timeout       time.Duration
	MaxRetries    uint64
	RetryInterval time.Duration
}

func NewTtsService(log *logger.Logger, host string, httpClient *http.Client, timeout time.Duration, maxRetries uint64, retryInterval time.Duration) *TtsService {
	return &TtsService{
		Logger:        log,
		Host:          host,
		HttpClient:    httpClient,
		Timeout:       timeout,
		MaxRetries:    maxRetries,
		RetryInterval: retryInterval,
	}
}

func (ts *TtsService) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(dto.SynthesizeRequest{Text: text})
	if err != nil {
		ts.Logger.Error(fmt.Sprintf("Failed to marshal synthesis payload: %v", err))
		return nil, err
	}

	var response dto.SynthesizeResponse
	err = retryRequest(ctx, ts.Timeout, ts.MaxRetries, ts.RetryInterval, func(cctx context.Context) error {
		req, err := http.NewRequestWithContext(cctx, http.MethodPost, ts.Host+"/synthesize", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := ts.HttpClient.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("synthesis service returned %s", res.Status)
		}
		if res.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("synthesis service returned %s", res.Status))
		}

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &response); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to unmarshal synthesis response: %w", err))
		}
		return nil
	})
	if err != nil {
		ts.Logger.Error(fmt.Sprintf("Synthesis failed after retries: %v", err))
		return nil, err
	}

	audio, err := base64.StdEncoding.DecodeString(response.AudioBase64)
	if err != nil {
		ts.Logger.Error(fmt.Sprintf("Failed to decode synthesized audio: %v", err))
		return nil, fmt.Errorf("failed to decode synthesized audio: %w", err)
	}
	return audio, nil
}
