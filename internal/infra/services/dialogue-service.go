package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"voice-ai/internal/domain/dto"
	"voice-ai/internal/domain/entities"
	"voice-ai/internal/infra/logger"

	"github.com/cenkalti/backoff/v4"
)

// DialogueService produces the next agent utterance from the ordered
// conversation history by calling the response-generation collaborator.
type DialogueService struct {
	Logger        *logger.Logger
	Host          string
	HttpClient    *http.Client
	Timeout       time.Duration
	MaxRetries    uint64
	RetryInterval time.Duration
}

func NewDialogueService(log *logger.Logger, host string, httpClient *http.Client, timeout time.Duration, maxRetries uint64, retryInterval time.Duration) *DialogueService {
	return &DialogueService{
		Logger:        log,
		Host:          host,
		HttpClient:    httpClient,
		Timeout:       timeout,
		MaxRetries:    maxRetries,
		RetryInterval: retryInterval,
	}
}

func (ds *DialogueService) GenerateReply(ctx context.Context, history []entities.Transcript) (string, error) {
	request := dto.DialogueRequest{Messages: make([]dto.DialogueMessage, 0, len(history))}
	for _, entry := range history {
		request.Messages = append(request.Messages, dto.DialogueMessage{
			Speaker: entry.Speaker,
			Text:    entry.Message,
		})
	}

	payload, err := json.Marshal(request)
	if err != nil {
		ds.Logger.Error(fmt.Sprintf("Failed to marshal dialogue payload: %v", err))
		return "", err
	}

	var response dto.DialogueResponse
	err = retryRequest(ctx, ds.Timeout, ds.MaxRetries, ds.RetryInterval, func(cctx context.Context) error {
		req, err := http.NewRequestWithContext(cctx, http.MethodPost, ds.Host+"/reply", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := ds.HttpClient.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("dialogue service returned %s", res.Status)
		}
		if res.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("dialogue service returned %s", res.Status))
		}

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &response); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to unmarshal dialogue response: %w", err))
		}
		return nil
	})
	if err != nil {
		ds.Logger.Error(fmt.Sprintf("Dialogue generation failed after retries: %v", err))
		return "", err
	}

	return response.Response, nil
}
