package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"msggw/internal/config"
	"msggw/internal/db"
	"msggw/internal/model"
	"msggw/internal/vault"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with a demo project, connectors and templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		v, err := vault.New(cfg.Vault.Secret)
		if err != nil {
			return fmt.Errorf("vault: %w", err)
		}

		sqlDB, err := db.NewMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo projects...")
		if err := seedProjects(sqlDB); err != nil {
			return err
		}
		log.Println(">> Seeding demo connectors...")
		if err := seedConnectors(sqlDB, v); err != nil {
			return err
		}
		log.Println(">> Seeding demo templates...")
		if err := seedTemplates(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed")
		return nil
	},
}

// seedProjects inserts deterministic demo projects (idempotent on api_key).
func seedProjects(dbx *sqlx.DB) error {
	projects := []model.Project{
		{
			ID:           1,
			Name:         "Acme Notifications",
			APIKey:       "11111111111111111111111111111111",
			Status:       "active",
			RateLimitRPS: intptr(20),
		},
		{
			ID:           2,
			Name:         "Foobar Alerts",
			APIKey:       "22222222222222222222222222222222",
			Status:       "active",
			RateLimitRPS: intptr(5),
		},
		{
			ID:           3,
			Name:         "Suspended Inc",
			APIKey:       "33333333333333333333333333333333",
			Status:       "suspended",
			RateLimitRPS: nil,
		},
	}

	const q = `
INSERT INTO projects
    (id, name, api_key, status, rate_limit_rps, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name           = VALUES(name),
    status         = VALUES(status),
    rate_limit_rps = VALUES(rate_limit_rps),
    updated_at     = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, p := range projects {
		if _, err := tx.Exec(q, p.ID, p.Name, p.APIKey, p.Status, p.RateLimitRPS, now, now); err != nil {
			return fmt.Errorf("insert project %q: %w", p.Name, err)
		}
	}
	return tx.Commit()
}

// seedConnectors gives project 1 one connector per provider, credentials
// encrypted with the configured vault secret. Placeholder values only.
func seedConnectors(dbx *sqlx.DB, v *vault.Vault) error {
	connectors := []struct {
		id    string
		typ   model.ProviderType
		creds model.Credentials
	}{
		{
			id:  "01HZDEMO0000000000WHATSAPP",
			typ: model.ProviderWhatsApp,
			creds: model.Credentials{
				"access_token":    "demo-wa-token",
				"phone_number_id": "123456789012345",
			},
		},
		{
			id:  "01HZDEMO0000000000TELEGRAM",
			typ: model.ProviderTelegram,
			creds: model.Credentials{
				"bot_token": "1234567:demo-bot-token",
			},
		},
		{
			id:  "01HZDEMO00000000000000SMS0",
			typ: model.ProviderSMS,
			creds: model.Credentials{
				"base_url": "http://127.0.0.1:9100",
				"api_key":  "demo-sms-key",
			},
		},
	}

	const q = `
INSERT INTO connectors
    (id, project_id, type, credentials_encrypted, created_at)
VALUES
    (?, 1, ?, ?, NOW())
ON DUPLICATE KEY UPDATE
    credentials_encrypted = VALUES(credentials_encrypted)
`
	for _, c := range connectors {
		blob, err := v.Encrypt(c.creds)
		if err != nil {
			return fmt.Errorf("encrypt %s credentials: %w", c.typ, err)
		}
		if _, err := dbx.Exec(q, c.id, c.typ.String(), blob); err != nil {
			return fmt.Errorf("insert connector %s: %w", c.typ, err)
		}
	}
	return nil
}

func seedTemplates(dbx *sqlx.DB) error {
	templates := []model.Template{
		{
			ID:           "01HZDEMO000000000000LOGIN0",
			ProjectID:    1,
			ProviderType: model.ProviderWhatsApp,
			Body:         "Hi {{name}}, your login code is {{code}}.",
			Variables:    model.VariableNames{"name", "code"},
		},
		{
			ID:           "01HZDEMO00000000000NOTIFY0",
			ProjectID:    1,
			ProviderType: model.ProviderSMS,
			Body:         "{{service}}: {{text}}",
			Variables:    model.VariableNames{"service", "text"},
		},
	}

	const q = `
INSERT INTO templates
    (id, project_id, provider_type, body, variables, created_at)
VALUES
    (?, ?, ?, ?, ?, NOW())
ON DUPLICATE KEY UPDATE
    body      = VALUES(body),
    variables = VALUES(variables)
`
	for _, t := range templates {
		if _, err := dbx.Exec(q, t.ID, t.ProjectID, t.ProviderType.String(), t.Body, t.Variables); err != nil {
			return fmt.Errorf("insert template %s: %w", t.ID, err)
		}
	}
	return nil
}

func intptr(i int) *int { return &i }
