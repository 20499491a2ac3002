package model

import (
	"strings"
	"time"
)

type ProviderType string

const (
	ProviderWhatsApp ProviderType = "whatsapp"
	ProviderTelegram ProviderType = "telegram"
	ProviderSMS      ProviderType = "sms"
)

func (t ProviderType) String() string { return string(t) }

func (t ProviderType) Valid() bool {
	return t == ProviderWhatsApp || t == ProviderTelegram || t == ProviderSMS
}

// ParseProviderType normalizes input. Returns (value, true) if valid.
func ParseProviderType(s string) (ProviderType, bool) {
	t := ProviderType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Credentials is the decrypted provider credential set. It only ever lives
// in worker memory; the DB holds the vault ciphertext.
type Credentials map[string]string

// Connector is a project-owned provider configuration.
// CredentialsEncrypted is never logged and never returned over the API.
type Connector struct {
	ID                   string       `db:"id"`
	ProjectID            int64        `db:"project_id"`
	Type                 ProviderType `db:"type"`
	CredentialsEncrypted string       `db:"credentials_encrypted"`
	CreatedAt            time.Time    `db:"created_at"`
}
