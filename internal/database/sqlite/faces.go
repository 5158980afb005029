package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/facematch"
)

const faceColumns = "id, name, encoding, COALESCE(image_url, ''), COALESCE(is_wanted, 0)"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFace(row rowScanner) (*database.KnownFace, error) {
	var (
		f        database.KnownFace
		encoding string
		wanted   int
	)
	if err := row.Scan(&f.ID, &f.Name, &encoding, &f.ImageURL, &wanted); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap
	}
	descriptor, err := facematch.DecodeStored(encoding)
	if err != nil {
		return nil, fmt.Errorf("face %d: %w", f.ID, err)
	}
	f.Encoding = descriptor
	f.Wanted = wanted != 0
	return &f, nil
}

func scanFaces(rows *sql.Rows) ([]database.KnownFace, error) {
	defer rows.Close()
	var faces []database.KnownFace
	for rows.Next() {
		f, err := scanFace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		faces = append(faces, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

// ListFaces returns all known faces, newest first.
func (s *Store) ListFaces(ctx context.Context) ([]database.KnownFace, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+faceColumns+" FROM known_faces ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	return scanFaces(rows)
}

// GetFace returns a face by ID.
func (s *Store) GetFace(ctx context.Context, id int64) (*database.KnownFace, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+faceColumns+" FROM known_faces WHERE id = ?", id)
	f, err := scanFace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get face: %w", err)
	}
	return f, nil
}

// GetFacesByName returns faces whose normalized name equals the normalized input.
// SQLite has no unaccent, so the comparison runs in Go over the whole library.
func (s *Store) GetFacesByName(ctx context.Context, name string) ([]database.KnownFace, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+faceColumns+" FROM known_faces ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query faces by name: %w", err)
	}
	all, err := scanFaces(rows)
	if err != nil {
		return nil, err
	}

	want := facematch.NormalizeName(name)
	var out []database.KnownFace
	for _, f := range all {
		if facematch.NormalizeName(f.Name) == want {
			out = append(out, f)
		}
	}
	return out, nil
}

// CountFaces returns the number of known faces.
func (s *Store) CountFaces(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM known_faces").Scan(&count); err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

// CreateFace inserts a face and returns its ID.
func (s *Store) CreateFace(ctx context.Context, face *database.KnownFace) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO known_faces (name, encoding, image_url, is_wanted) VALUES (?, ?, ?, ?)",
		face.Name, facematch.EncodeDescriptor(face.Encoding), face.ImageURL, boolToInt(face.Wanted),
	)
	if err != nil {
		return 0, fmt.Errorf("insert face: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting inserted face id: %w", err)
	}
	face.ID = id
	return id, nil
}

// UpdateFace applies a partial update inside a transaction.
func (s *Store) UpdateFace(ctx context.Context, id int64, update database.KnownFaceUpdate) (*database.KnownFace, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	current, err := scanFace(tx.QueryRowContext(ctx, "SELECT "+faceColumns+" FROM known_faces WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get face: %w", err)
	}

	applyFaceUpdate(current, update)

	_, err = tx.ExecContext(ctx,
		"UPDATE known_faces SET name = ?, encoding = ?, image_url = ?, is_wanted = ? WHERE id = ?",
		current.Name, facematch.EncodeDescriptor(current.Encoding), current.ImageURL, boolToInt(current.Wanted), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update face: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit face update: %w", err)
	}
	return current, nil
}

func applyFaceUpdate(f *database.KnownFace, u database.KnownFaceUpdate) {
	if u.Name != nil {
		f.Name = *u.Name
	}
	if u.Encoding != nil {
		f.Encoding = u.Encoding
	}
	if u.ImageURL != nil {
		f.ImageURL = *u.ImageURL
	}
	if u.Wanted != nil {
		f.Wanted = *u.Wanted
	}
}

// DeleteFace removes a face. Missing IDs are ignored.
func (s *Store) DeleteFace(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM known_faces WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete face: %w", err)
	}
	return nil
}
