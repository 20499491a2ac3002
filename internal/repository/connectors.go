package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"msggw/internal/model"
)

// ConnectorsRepository reads provider configurations. Writes happen through
// project admin tooling, not the dispatch core.
type ConnectorsRepository interface {
	// GetByID returns nil when the connector does not exist in the given
	// project; cross-project ids are indistinguishable from absent ones.
	GetByID(ctx context.Context, id string, projectID int64) (*model.Connector, error)
}

type ConnectorsRepositoryImpl struct {
	db *sqlx.DB
}

func NewConnectorsRepository(db *sqlx.DB) *ConnectorsRepositoryImpl {
	return &ConnectorsRepositoryImpl{db: db}
}

var _ ConnectorsRepository = (*ConnectorsRepositoryImpl)(nil)

func (r *ConnectorsRepositoryImpl) GetByID(ctx context.Context, id string, projectID int64) (*model.Connector, error) {
	var c model.Connector
	err := r.db.GetContext(ctx, &c, `
		SELECT id, project_id, type, credentials_encrypted, created_at
		  FROM connectors
		 WHERE id = ? AND project_id = ? LIMIT 1
	`, id, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
