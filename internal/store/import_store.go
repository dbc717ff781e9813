package store

import (
	"context"
	"database/sql"
	"errors"

	"fintrack/internal/errs"
	"fintrack/internal/models"
)

// ImportJobStore tracks provenance of bulk-ingested transactions. The
// job row never holds ledger data itself.
type ImportJobStore struct {
	db DB
}

func NewImportJobStore(db DB) *ImportJobStore {
	return &ImportJobStore{db: db}
}

func (s *ImportJobStore) Create(ctx context.Context, tx Execer, id, userID, source, metadata string) error {
	query := `
		INSERT INTO import_jobs (id, user_id, source, status, metadata)
		VALUES ($1, $2, $3, 'pending', $4)
	`
	_, err := tx.ExecContext(ctx, query, id, userID, source, metadata)
	return err
}

func (s *ImportJobStore) UpdateStatus(ctx context.Context, tx Execer, jobID, status, metadata string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE import_jobs
		SET status = $1, metadata = $2, updated_at = NOW()
		WHERE id = $3
	`, status, metadata, jobID)
	return err
}

func (s *ImportJobStore) GetByID(ctx context.Context, userID, jobID string) (models.ImportJob, error) {
	var row models.ImportJob
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, source, status, metadata, created_at, updated_at
		FROM import_jobs
		WHERE id = $1 AND user_id = $2
	`, jobID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ImportJob{}, errs.NewNotFoundError("import job not found")
	}
	if err != nil {
		return models.ImportJob{}, err
	}
	return row, nil
}

func (s *ImportJobStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.ImportJob, error) {
	var rows []models.ImportJob
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, source, status, metadata, created_at, updated_at
		FROM import_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ImportJobStore) DeleteAllByUser(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM import_jobs WHERE user_id = $1`, userID)
	return err
}
