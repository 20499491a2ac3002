package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"msggw/internal/model"
)

// SMS posts to a generic HTTP SMS aggregator. The aggregator contract is a
// JSON POST {to, text} answered with the provider's message id.
type SMS struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSMS(creds model.Credentials, client *http.Client) (Connector, error) {
	vals, err := requireCreds(creds, "base_url", "api_key")
	if err != nil {
		return nil, fmt.Errorf("sms connector: %w", err)
	}

	return &SMS{
		baseURL: strings.TrimRight(vals[0], "/"),
		apiKey:  vals[1],
		client:  client,
	}, nil
}

func (s *SMS) Type() model.ProviderType { return model.ProviderSMS }

type smsSendResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

func (s *SMS) Send(ctx context.Context, to, body string) SendResult {
	payload, err := json.Marshal(map[string]string{
		"to":   to,
		"text": body,
	})
	if err != nil {
		return failure("sms: marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return failure("sms: build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.apiKey)

	res, err := s.client.Do(req)
	if err != nil {
		return failure("sms: request failed: %v", err)
	}
	defer res.Body.Close()

	var out smsSendResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&out); err != nil {
		return failure("sms: decode response (status %d): %v", res.StatusCode, err)
	}

	if res.StatusCode/100 != 2 {
		msg := out.Error
		if msg == "" {
			msg = "unknown error"
		}
		return failure("sms: status %d: %s", res.StatusCode, msg)
	}
	if out.ID == "" {
		return failure("sms: response missing message id")
	}

	return SendResult{OK: true, ExternalID: out.ID}
}
