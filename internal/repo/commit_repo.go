package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CommitRepo учитывает ассеты коммита сервиса загрузки (таблица commit_assets).
//
// newAssets регистрирует список ассетов коммита, каждый createRecord
// вычёркивает свой ассет. Когда список пуст, коммит подтверждается.
type CommitRepo struct {
	pool *pgxpool.Pool
}

// NewCommitRepo создаёт новый CommitRepo.
func NewCommitRepo(pool *pgxpool.Pool) *CommitRepo {
	return &CommitRepo{pool: pool}
}

// Register сохраняет список ассетов коммита.
// Повторная регистрация того же коммита возвращает ErrAlreadyExists.
func (r *CommitRepo) Register(ctx context.Context, commitID string, assets []string) error {
	query := `
		INSERT INTO commit_assets (commit_id, assets)
		VALUES ($1, $2)
		ON CONFLICT (commit_id) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query, commitID, assets)
	if err != nil {
		return fmt.Errorf("register commit assets: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// MarkDone вычёркивает ассет из коммита и возвращает число оставшихся.
// Одно UPDATE, поэтому параллельные воркеры не теряют вычёркивания.
func (r *CommitRepo) MarkDone(ctx context.Context, commitID, assetID string) (int, error) {
	query := `
		UPDATE commit_assets
		SET assets = array_remove(assets, $2), updated_at = now()
		WHERE commit_id = $1
		RETURNING cardinality(assets)
	`
	var remaining int
	err := r.pool.QueryRow(ctx, query, commitID, assetID).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("mark commit asset done: %w", err)
	}
	return remaining, nil
}

// Delete удаляет учёт коммита.
func (r *CommitRepo) Delete(ctx context.Context, commitID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM commit_assets WHERE commit_id = $1`, commitID)
	if err != nil {
		return fmt.Errorf("delete commit assets: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
