package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LogEntry — строка журнала воркеров.
type LogEntry struct {
	ID        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// LogRepo — журнал воркеров (таблица worker_logs).
type LogRepo struct {
	pool *pgxpool.Pool
}

// NewLogRepo создаёт новый LogRepo.
func NewLogRepo(pool *pgxpool.Pool) *LogRepo {
	return &LogRepo{pool: pool}
}

// Append добавляет строку в журнал.
func (r *LogRepo) Append(ctx context.Context, message string) (*LogEntry, error) {
	entry := &LogEntry{
		ID:        uuid.New(),
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO worker_logs (id, message, created_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.pool.Exec(ctx, query, entry.ID, entry.Message, entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert worker log: %w", err)
	}
	return entry, nil
}

// ListRecent возвращает последние строки журнала, новые первыми.
func (r *LogRepo) ListRecent(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT id, message, created_at
		FROM worker_logs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list worker logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan worker log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
