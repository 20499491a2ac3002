package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"msggw/internal/model"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram sends text messages through the Bot API. The recipient is the
// destination chat id.
type Telegram struct {
	botToken string
	baseURL  string
	client   *http.Client
}

func NewTelegram(creds model.Credentials, client *http.Client) (Connector, error) {
	vals, err := requireCreds(creds, "bot_token")
	if err != nil {
		return nil, fmt.Errorf("telegram connector: %w", err)
	}

	base := creds["base_url"]
	if base == "" {
		base = telegramAPIBase
	}

	return &Telegram{botToken: vals[0], baseURL: base, client: client}, nil
}

func (t *Telegram) Type() model.ProviderType { return model.ProviderTelegram }

type tgSendResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, to, body string) SendResult {
	payload, err := json.Marshal(map[string]string{
		"chat_id": to,
		"text":    body,
	})
	if err != nil {
		return failure("telegram: marshal request: %v", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return failure("telegram: build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		return failure("telegram: request failed: %v", err)
	}
	defer res.Body.Close()

	var out tgSendResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&out); err != nil {
		return failure("telegram: decode response (status %d): %v", res.StatusCode, err)
	}

	if !out.OK {
		msg := out.Description
		if msg == "" {
			msg = "unknown error"
		}
		return failure("telegram: status %d: %s", res.StatusCode, msg)
	}
	if out.Result.MessageID == 0 {
		return failure("telegram: response missing message id")
	}

	return SendResult{OK: true, ExternalID: strconv.FormatInt(out.Result.MessageID, 10)}
}
