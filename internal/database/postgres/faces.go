package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/facematch"
)

const faceColumns = "id, name, encoding, image_url, is_wanted"

// scanFaceRow scans a single row into a KnownFace, with optional extra scan destinations
// appended after the standard face columns (e.g., a distance column).
func scanFaceRow(scanner interface{ Scan(...any) error }, extraDest ...any) (database.KnownFace, error) {
	var (
		face     database.KnownFace
		encoding string
	)
	dest := append([]any{&face.ID, &face.Name, &encoding, &face.ImageURL, &face.Wanted}, extraDest...)
	if err := scanner.Scan(dest...); err != nil {
		return face, err //nolint:wrapcheck // callers wrap
	}
	descriptor, err := facematch.DecodeStored(encoding)
	if err != nil {
		return face, fmt.Errorf("face %d: %w", face.ID, err)
	}
	face.Encoding = descriptor
	return face, nil
}

func scanFaces(rows *sql.Rows) ([]database.KnownFace, error) {
	defer rows.Close()
	var faces []database.KnownFace
	for rows.Next() {
		face, err := scanFaceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		faces = append(faces, face)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

// embeddingValue returns the pgvector value for a descriptor, NULL when empty.
func embeddingValue(descriptor []float32) any {
	if len(descriptor) == 0 {
		return nil
	}
	return pgvector.NewVector(descriptor)
}

// ListFaces returns all known faces, newest first.
func (p *Pool) ListFaces(ctx context.Context) ([]database.KnownFace, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT "+faceColumns+" FROM known_faces ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	return scanFaces(rows)
}

// GetFace returns a face by ID.
func (p *Pool) GetFace(ctx context.Context, id int64) (*database.KnownFace, error) {
	face, err := scanFaceRow(p.db.QueryRowContext(ctx, "SELECT "+faceColumns+" FROM known_faces WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get face: %w", err)
	}
	return &face, nil
}

// GetFacesByName compares normalized names in SQL.
// This matches facematch.NormalizeName: trimmed, lowercase, no diacritics, dashes to spaces.
func (p *Pool) GetFacesByName(ctx context.Context, name string) ([]database.KnownFace, error) {
	query := `
		SELECT ` + faceColumns + `
		FROM known_faces
		WHERE LOWER(REPLACE(unaccent(TRIM(name)), '-', ' ')) = $1
		ORDER BY id
	`
	rows, err := p.db.QueryContext(ctx, query, facematch.NormalizeName(name))
	if err != nil {
		return nil, fmt.Errorf("query faces by name: %w", err)
	}
	return scanFaces(rows)
}

// CountFaces returns the number of known faces.
func (p *Pool) CountFaces(ctx context.Context) (int, error) {
	var count int
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM known_faces").Scan(&count); err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

// NearestFaces returns up to limit faces ordered by exact L2 distance to descriptor.
// Faces whose descriptor length differs are ignored.
func (p *Pool) NearestFaces(ctx context.Context, descriptor []float32, limit int) ([]database.KnownFace, []float64, error) {
	if len(descriptor) == 0 {
		return nil, nil, nil
	}
	query := `
		SELECT ` + faceColumns + `, embedding <-> $1 AS distance
		FROM known_faces
		WHERE embedding IS NOT NULL AND vector_dims(embedding) = $2
		ORDER BY distance, id DESC
		LIMIT $3
	`
	rows, err := p.db.QueryContext(ctx, query, pgvector.NewVector(descriptor), len(descriptor), limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query nearest faces: %w", err)
	}
	defer rows.Close()

	var (
		faces     []database.KnownFace
		distances []float64
	)
	for rows.Next() {
		var distance float64
		face, err := scanFaceRow(rows, &distance)
		if err != nil {
			return nil, nil, fmt.Errorf("scan nearest face: %w", err)
		}
		faces = append(faces, face)
		distances = append(distances, distance)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate nearest faces: %w", err)
	}
	return faces, distances, nil
}

// CreateFace inserts a face and returns its ID.
func (p *Pool) CreateFace(ctx context.Context, face *database.KnownFace) (int64, error) {
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO known_faces (name, encoding, embedding, image_url, is_wanted)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		face.Name, facematch.EncodeDescriptor(face.Encoding), embeddingValue(face.Encoding), face.ImageURL, face.Wanted,
	).Scan(&face.ID)
	if err != nil {
		return 0, fmt.Errorf("insert face: %w", err)
	}
	return face.ID, nil
}

// UpdateFace applies a partial update inside a transaction.
func (p *Pool) UpdateFace(ctx context.Context, id int64, update database.KnownFaceUpdate) (*database.KnownFace, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	face, err := scanFaceRow(tx.QueryRowContext(ctx,
		"SELECT "+faceColumns+" FROM known_faces WHERE id = $1 FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get face: %w", err)
	}

	if update.Name != nil {
		face.Name = *update.Name
	}
	if update.Encoding != nil {
		face.Encoding = update.Encoding
	}
	if update.ImageURL != nil {
		face.ImageURL = *update.ImageURL
	}
	if update.Wanted != nil {
		face.Wanted = *update.Wanted
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE known_faces
		SET name = $1, encoding = $2, embedding = $3, image_url = $4, is_wanted = $5
		WHERE id = $6`,
		face.Name, facematch.EncodeDescriptor(face.Encoding), embeddingValue(face.Encoding), face.ImageURL, face.Wanted, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update face: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &face, nil
}

// DeleteFace removes a face. Missing IDs are ignored.
func (p *Pool) DeleteFace(ctx context.Context, id int64) error {
	if _, err := p.db.ExecContext(ctx, "DELETE FROM known_faces WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete face: %w", err)
	}
	return nil
}
