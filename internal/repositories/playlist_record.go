package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

const recordColumns = `id, sequence, owner_id, external_id, name, description, track_count, image_url, criteria, created_at, deleted_at`

// PlaylistRecordRepository persists [models.PlaylistRecord] rows.
type PlaylistRecordRepository struct {
	db *sql.DB
}

// NewPlaylistRecordRepository creates a new [PlaylistRecordRepository] with the given database connection
func NewPlaylistRecordRepository(db *sql.DB) *PlaylistRecordRepository {
	return &PlaylistRecordRepository{db: db}
}

// InsertRecord stores every field of record, assigning its ID and sequence.
func (r *PlaylistRecordRepository) InsertRecord(ctx context.Context, record *models.PlaylistRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	criteria, err := marshalCriteria(record.Criteria())
	if err != nil {
		return err
	}

	sequence, err := NextSequence(ctx, r.db, "playlist_records")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO playlist_records (id, sequence, owner_id, external_id, name, description, track_count, image_url, criteria, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		id, sequence, record.OwnerID(), record.ExternalID(), record.Name(),
		nullString(record.Description()), record.TrackCount(), nullString(record.ImageURL()), criteria,
		record.CreatedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist record: %w", err)
	}

	record.SetID(id)
	record.SetSequence(sequence)
	return nil
}

// InsertMinimalRecord stores only the owner, external ID, name and creation time of record.
func (r *PlaylistRecordRepository) InsertMinimalRecord(ctx context.Context, record *models.PlaylistRecord) error {
	sequence, err := NextSequence(ctx, r.db, "playlist_records")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO playlist_records (id, sequence, owner_id, external_id, name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		id, sequence, record.OwnerID(), record.ExternalID(), record.Name(), record.CreatedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert minimal playlist record: %w", err)
	}

	record.SetID(id)
	record.SetSequence(sequence)
	return nil
}

// Get retrieves a record by ID, excluding soft-deleted records
func (r *PlaylistRecordRepository) Get(ctx context.Context, id string) (*models.PlaylistRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM playlist_records WHERE id = ? AND deleted_at IS NULL`

	record, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist record: %w", err)
	}
	return record, nil
}

// ListByOwner returns ownerID's records, newest first. A limit of zero or less returns all of them.
func (r *PlaylistRecordRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.PlaylistRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM playlist_records WHERE owner_id = ? AND deleted_at IS NULL ORDER BY sequence DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist records: %w", err)
	}
	defer rows.Close()

	var records []*models.PlaylistRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// Delete soft-deletes a record by ID
func (r *PlaylistRecordRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE playlist_records SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist record: %w", err)
	}
	return affected(result, shared.ErrRecordNotFound, id)
}

func scanRecord(s scanner) (*models.PlaylistRecord, error) {
	var (
		id          string
		sequence    int
		ownerID     string
		externalID  string
		name        string
		description sql.NullString
		trackCount  int
		imageURL    sql.NullString
		criteria    sql.NullString
		createdAt   time.Time
		deletedAt   sql.NullTime
	)

	err := s.Scan(&id, &sequence, &ownerID, &externalID, &name, &description, &trackCount, &imageURL, &criteria, &createdAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	record := models.RestorePlaylistRecord(id, sequence, ownerID, externalID, name, createdAt)
	record.SetDescription(description.String)
	record.SetTrackCount(trackCount)
	record.SetImageURL(imageURL.String)
	if deletedAt.Valid {
		record.SetDeletedAt(&deletedAt.Time)
	}

	c, err := unmarshalCriteria(criteria.String)
	if err != nil {
		return nil, err
	}
	record.SetCriteria(c)
	return record, nil
}

func marshalCriteria(c *models.PlaylistCriteria) (sql.NullString, error) {
	if c == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode criteria: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalCriteria(s string) (*models.PlaylistCriteria, error) {
	if s == "" {
		return nil, nil
	}
	var c models.PlaylistCriteria
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, fmt.Errorf("failed to decode criteria: %w", err)
	}
	return &c, nil
}
