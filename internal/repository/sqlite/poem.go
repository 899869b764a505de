package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/poit/internal/apperror"
	"github.com/sakif/poit/internal/model"
	"github.com/sakif/poit/internal/repository"
)

var _ repository.PoemRepository = (*DB)(nil)

// CreatePoem inserts an empty poem owned by poem.UserID.
// ID and timestamps are filled in on the caller's struct.
func (db *DB) CreatePoem(ctx context.Context, poem *model.Poem) error {
	ts := now()
	poem.ID = xid.New().String()
	poem.CreatedAt = ts
	poem.UpdatedAt = ts
	if poem.Stanzas == nil {
		poem.Stanzas = []model.Stanza{}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO poems (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		poem.ID,
		poem.UserID,
		poem.Title,
		toUnix(poem.CreatedAt),
		toUnix(poem.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", poem.UserID)
		}
		return fmt.Errorf("sqlite: creating poem: %w", err)
	}
	return nil
}

// GetPoem returns one poem with its author and ordered stanzas.
func (db *DB) GetPoem(ctx context.Context, id string) (*model.Poem, error) {
	rows, err := db.conn.QueryContext(ctx, selectPoems+` WHERE p.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting poem %s: %w", id, err)
	}
	poems, err := scanPoems(rows, 1)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting poem %s: %w", id, err)
	}
	if len(poems) == 0 {
		return nil, apperror.NotFound("poem", id)
	}

	if err := db.attachStanzas(ctx, db.conn, poems); err != nil {
		return nil, err
	}
	return &poems[0], nil
}

// UpdatePoemTitle renames a poem and bumps its updated_at.
func (db *DB) UpdatePoemTitle(ctx context.Context, id, title string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE poems SET title = ?, updated_at = ? WHERE id = ?`,
		title, toUnix(now()), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: renaming poem %s: %w", id, err)
	}
	return expectOneRow(result, "poem", id)
}

// DeletePoem removes a poem. Its stanzas go with it via ON DELETE CASCADE.
func (db *DB) DeletePoem(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM poems WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting poem %s: %w", id, err)
	}
	return expectOneRow(result, "poem", id)
}

func expectOneRow(result sql.Result, resource, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

// touchPoem bumps a poem's updated_at. Every stanza mutation calls it so the
// poem moves to the top of recency-ordered listings.
func touchPoem(ctx context.Context, q querier, poemID string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE poems SET updated_at = ? WHERE id = ?`, toUnix(now()), poemID)
	if err != nil {
		return fmt.Errorf("sqlite: touching poem %s: %w", poemID, err)
	}
	return expectOneRow(result, "poem", poemID)
}
