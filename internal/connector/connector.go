// Package connector adapts external messaging providers behind a uniform
// send interface. Concrete connectors translate provider responses into
// SendResult; ordinary provider-side failures (network errors, 4xx/5xx)
// never surface as Go errors.
package connector

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"msggw/internal/model"
)

// SendResult is the uniform outcome of one provider call.
type SendResult struct {
	OK         bool
	ExternalID string // provider-assigned message id, set on success
	Error      string // human-readable failure, set on !OK
}

type Connector interface {
	Type() model.ProviderType
	Send(ctx context.Context, to, body string) SendResult
}

// Builder constructs a connector from decrypted credentials. Missing
// required fields fail construction: that signals misconfiguration, not a
// transient condition, and must not be retried.
type Builder func(creds model.Credentials, client *http.Client) (Connector, error)

// Registry maps provider types to builders so adding a provider needs no
// change to factory control flow.
type Registry struct {
	builders map[model.ProviderType]Builder
	client   *http.Client
}

func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Registry{
		builders: make(map[model.ProviderType]Builder),
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *Registry) Register(t model.ProviderType, b Builder) {
	r.builders[t] = b
}

// Create builds a connector for the given provider type. Unsupported types
// are a fatal configuration error.
func (r *Registry) Create(t model.ProviderType, creds model.Credentials) (Connector, error) {
	b, ok := r.builders[t]
	if !ok {
		return nil, fmt.Errorf("unsupported provider type %q", t)
	}
	return b(creds, r.client)
}

// Types lists registered provider types, sorted for stable output.
func (r *Registry) Types() []model.ProviderType {
	out := make([]model.ProviderType, 0, len(r.builders))
	for t := range r.builders {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DefaultRegistry wires every provider this build knows about.
func DefaultRegistry(timeout time.Duration) *Registry {
	r := NewRegistry(timeout)
	r.Register(model.ProviderWhatsApp, NewWhatsApp)
	r.Register(model.ProviderTelegram, NewTelegram)
	r.Register(model.ProviderSMS, NewSMS)
	return r
}

// requireCreds pulls mandatory fields, collecting the missing ones into a
// single construction error.
func requireCreds(creds model.Credentials, keys ...string) ([]string, error) {
	vals := make([]string, 0, len(keys))
	var missing []string
	for _, k := range keys {
		v := creds[k]
		if v == "" {
			missing = append(missing, k)
			continue
		}
		vals = append(vals, v)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required credentials: %v", missing)
	}
	return vals, nil
}

func failure(format string, args ...any) SendResult {
	return SendResult{Error: fmt.Sprintf(format, args...)}
}
