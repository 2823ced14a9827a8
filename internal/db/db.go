package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"

	"github.com/beatpress/api/internal/models"
)

// DB records published videos. The pipeline itself keeps no job state; this
// ledger only exists so operators can see what went out and when.
type DB struct {
	conn *sql.DB
}

func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("[DB] connected")
	return &DB{conn: conn}, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) EnsureSchema(ctx context.Context) error {
	_, err := d.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS publishes (
			id BIGSERIAL PRIMARY KEY,
			job_id TEXT NOT NULL,
			video_id TEXT NOT NULL,
			url TEXT NOT NULL,
			title TEXT NOT NULL,
			bpm INTEGER NOT NULL,
			key TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure publishes table: %w", err)
	}
	return nil
}

func (d *DB) CreatePublishRecord(ctx context.Context, rec *models.PublishRecord) error {
	err := d.conn.QueryRowContext(ctx, `
		INSERT INTO publishes (job_id, video_id, url, title, bpm, key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, rec.JobID, rec.VideoID, rec.URL, rec.Title, rec.BPM, rec.Key).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert publish record: %w", err)
	}
	return nil
}

func (d *DB) ListPublishRecords(ctx context.Context, limit int) ([]models.PublishRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, job_id, video_id, url, title, bpm, key, created_at
		FROM publishes
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query publishes: %w", err)
	}
	defer rows.Close()

	records := []models.PublishRecord{}
	for rows.Next() {
		var rec models.PublishRecord
		if err := rows.Scan(&rec.ID, &rec.JobID, &rec.VideoID, &rec.URL, &rec.Title, &rec.BPM, &rec.Key, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan publish record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate publishes: %w", err)
	}
	return records, nil
}
