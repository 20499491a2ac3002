package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"msggw/internal/model"
)

const whatsappAPIBase = "https://graph.facebook.com/v18.0"

// WhatsApp sends text messages through the Meta Graph Cloud API.
type WhatsApp struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	client        *http.Client
}

func NewWhatsApp(creds model.Credentials, client *http.Client) (Connector, error) {
	vals, err := requireCreds(creds, "access_token", "phone_number_id")
	if err != nil {
		return nil, fmt.Errorf("whatsapp connector: %w", err)
	}

	base := creds["base_url"] // override for tests and sandboxes
	if base == "" {
		base = whatsappAPIBase
	}

	return &WhatsApp{
		accessToken:   vals[0],
		phoneNumberID: vals[1],
		baseURL:       base,
		client:        client,
	}, nil
}

func (w *WhatsApp) Type() model.ProviderType { return model.ProviderWhatsApp }

type waSendRequest struct {
	MessagingProduct string     `json:"messaging_product"`
	To               string     `json:"to"`
	Type             string     `json:"type"`
	Text             waSendText `json:"text"`
}

type waSendText struct {
	Body string `json:"body"`
}

type waSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (w *WhatsApp) Send(ctx context.Context, to, body string) SendResult {
	payload, err := json.Marshal(waSendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             waSendText{Body: body},
	})
	if err != nil {
		return failure("whatsapp: marshal request: %v", err)
	}

	url := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return failure("whatsapp: build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.accessToken)

	res, err := w.client.Do(req)
	if err != nil {
		return failure("whatsapp: request failed: %v", err)
	}
	defer res.Body.Close()

	var out waSendResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&out); err != nil {
		return failure("whatsapp: decode response (status %d): %v", res.StatusCode, err)
	}

	if res.StatusCode/100 != 2 {
		msg := out.Error.Message
		if msg == "" {
			msg = "unknown error"
		}
		return failure("whatsapp: status %d: %s", res.StatusCode, msg)
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return failure("whatsapp: response missing message id")
	}

	return SendResult{OK: true, ExternalID: out.Messages[0].ID}
}
