package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"msggw/internal/model"
)

type ProjectsRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Project, error)
}

type ProjectsRepositoryImpl struct {
	db *sqlx.DB
}

func NewProjectsRepository(db *sqlx.DB) *ProjectsRepositoryImpl {
	return &ProjectsRepositoryImpl{db: db}
}

var _ ProjectsRepository = (*ProjectsRepositoryImpl)(nil)

func (r *ProjectsRepositoryImpl) GetByAPIKey(ctx context.Context, apiKey string) (*model.Project, error) {
	var p model.Project
	err := r.db.GetContext(ctx, &p, `
		SELECT id, name, api_key, status, rate_limit_rps, created_at, updated_at
		  FROM projects
		 WHERE api_key = ? LIMIT 1
	`, apiKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
