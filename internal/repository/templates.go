package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"msggw/internal/model"
)

type TemplatesRepository interface {
	// GetByID returns nil when the template does not exist in the given
	// project.
	GetByID(ctx context.Context, id string, projectID int64) (*model.Template, error)
}

type TemplatesRepositoryImpl struct {
	db *sqlx.DB
}

func NewTemplatesRepository(db *sqlx.DB) *TemplatesRepositoryImpl {
	return &TemplatesRepositoryImpl{db: db}
}

var _ TemplatesRepository = (*TemplatesRepositoryImpl)(nil)

func (r *TemplatesRepositoryImpl) GetByID(ctx context.Context, id string, projectID int64) (*model.Template, error) {
	var t model.Template
	err := r.db.GetContext(ctx, &t, `
		SELECT id, project_id, provider_type, body, variables, created_at
		  FROM templates
		 WHERE id = ? AND project_id = ? LIMIT 1
	`, id, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
