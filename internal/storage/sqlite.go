package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite-based storage at dbPath.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &SQLiteStorage{db: db}

	if err := storage.init(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

func (s *SQLiteStorage) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scenes (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_scenes_name ON scenes(name);

	CREATE TABLE IF NOT EXISTS frame_stats (
		recorded_at DATETIME NOT NULL,
		fps REAL NOT NULL,
		frame_count INTEGER NOT NULL,
		overrun_count INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_frame_stats_recorded_at ON frame_stats(recorded_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveScene inserts or updates a scene document by ID.
func (s *SQLiteStorage) SaveScene(doc *SceneDocument) error {
	query := `
		INSERT INTO scenes (id, name, data)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := s.db.Exec(query, doc.ID, doc.Name, doc.Data)
	if err != nil {
		return fmt.Errorf("failed to save scene: %w", err)
	}

	return nil
}

// GetScene retrieves a scene document by ID.
func (s *SQLiteStorage) GetScene(id int) (*SceneDocument, error) {
	query := `SELECT id, name, data, created_at, updated_at FROM scenes WHERE id = ?`

	doc := &SceneDocument{}
	err := s.db.QueryRow(query, id).Scan(&doc.ID, &doc.Name, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("scene not found: %d", id)
		}
		return nil, fmt.Errorf("failed to query scene: %w", err)
	}

	return doc, nil
}

// ListScenes returns every scene document, most recently updated first.
func (s *SQLiteStorage) ListScenes() ([]*SceneDocument, error) {
	query := `SELECT id, name, data, created_at, updated_at FROM scenes ORDER BY updated_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenes: %w", err)
	}
	defer rows.Close()

	docs := []*SceneDocument{}

	for rows.Next() {
		doc := &SceneDocument{}
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			continue
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// DeleteScene removes a scene document by ID.
func (s *SQLiteStorage) DeleteScene(id int) error {
	query := `DELETE FROM scenes WHERE id = ?`

	result, err := s.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete scene: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("scene not found: %d", id)
	}

	return nil
}

// RecordFrameStat appends one frame-loop health sample.
func (s *SQLiteStorage) RecordFrameStat(stat FrameStat) error {
	query := `INSERT INTO frame_stats (recorded_at, fps, frame_count, overrun_count) VALUES (?, ?, ?, ?)`
	if stat.RecordedAt.IsZero() {
		stat.RecordedAt = time.Now()
	}
	_, err := s.db.Exec(query, stat.RecordedAt, stat.FPS, stat.FrameCount, stat.OverrunCount)
	if err != nil {
		return fmt.Errorf("failed to record frame stat: %w", err)
	}
	return nil
}

// RecentFrameStats returns up to limit most-recent samples, newest first.
func (s *SQLiteStorage) RecentFrameStats(limit int) ([]FrameStat, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT recorded_at, fps, frame_count, overrun_count FROM frame_stats ORDER BY recorded_at DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query frame stats: %w", err)
	}
	defer rows.Close()

	stats := []FrameStat{}
	for rows.Next() {
		var stat FrameStat
		if err := rows.Scan(&stat.RecordedAt, &stat.FPS, &stat.FrameCount, &stat.OverrunCount); err != nil {
			continue
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
