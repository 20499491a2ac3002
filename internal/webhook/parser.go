package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"msggw/internal/model"
)

// StatusEvent is one provider-reported status change, normalized from the
// provider's payload shape.
type StatusEvent struct {
	ExternalID string
	Status     model.MessageStatus
	Timestamp  time.Time
	Reason     string
}

// mapProviderStatus translates the provider status vocabulary into the
// internal enum. read collapses into delivered; unknown values are ignored.
func mapProviderStatus(s string) (model.MessageStatus, bool) {
	switch s {
	case "sent":
		return model.StatusSent, true
	case "delivered":
		return model.StatusDelivered, true
	case "read":
		return model.StatusDelivered, true
	case "failed":
		return model.StatusFailed, true
	case "undelivered":
		return model.StatusUndelivered, true
	default:
		return "", false
	}
}

type parser func(payload []byte) ([]StatusEvent, error)

var parsers = map[model.ProviderType]parser{
	model.ProviderWhatsApp: parseWhatsApp,
	model.ProviderTelegram: parseGeneric,
	model.ProviderSMS:      parseGeneric,
}

// ---- WhatsApp (Meta Graph webhooks) ----

type waWebhook struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Statuses []struct {
					ID        string `json:"id"`
					Status    string `json:"status"`
					Timestamp string `json:"timestamp"` // unix seconds
					Errors    []struct {
						Code  int    `json:"code"`
						Title string `json:"title"`
					} `json:"errors"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func parseWhatsApp(payload []byte) ([]StatusEvent, error) {
	var hook waWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("whatsapp payload: %w", err)
	}

	var events []StatusEvent
	for _, entry := range hook.Entry {
		for _, change := range entry.Changes {
			for _, st := range change.Value.Statuses {
				if st.ID == "" {
					continue
				}
				mapped, ok := mapProviderStatus(st.Status)
				if !ok {
					continue
				}
				ev := StatusEvent{ExternalID: st.ID, Status: mapped}
				if secs, err := strconv.ParseInt(st.Timestamp, 10, 64); err == nil {
					ev.Timestamp = time.Unix(secs, 0)
				}
				if len(st.Errors) > 0 {
					ev.Reason = st.Errors[0].Title
				}
				events = append(events, ev)
			}
		}
	}
	return events, nil
}

// ---- generic flat shape (telegram and sms aggregators) ----

type genericWebhook struct {
	Events []struct {
		MessageID string    `json:"message_id"`
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
		Reason    string    `json:"reason"`
	} `json:"events"`
}

func parseGeneric(payload []byte) ([]StatusEvent, error) {
	var hook genericWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("status payload: %w", err)
	}

	var events []StatusEvent
	for _, e := range hook.Events {
		if e.MessageID == "" {
			continue
		}
		mapped, ok := mapProviderStatus(e.Status)
		if !ok {
			continue
		}
		events = append(events, StatusEvent{
			ExternalID: e.MessageID,
			Status:     mapped,
			Timestamp:  e.Timestamp,
			Reason:     e.Reason,
		})
	}
	return events, nil
}
