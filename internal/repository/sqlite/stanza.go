package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/poit/internal/apperror"
	"github.com/sakif/poit/internal/model"
)

// AddStanza appends a stanza to the end of its poem. Position is assigned
// here; whatever the caller put in stanza.Position is overwritten.
func (db *DB) AddStanza(ctx context.Context, stanza *model.Stanza) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if err := touchPoem(ctx, tx, stanza.PoemID); err != nil {
			return err
		}

		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM stanzas WHERE poem_id = ?`,
			stanza.PoemID,
		).Scan(&next); err != nil {
			return fmt.Errorf("sqlite: next stanza position: %w", err)
		}

		ts := now()
		stanza.ID = xid.New().String()
		stanza.Position = next
		stanza.CreatedAt = ts
		stanza.UpdatedAt = ts

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stanzas (id, poem_id, body, position, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			stanza.ID, stanza.PoemID, stanza.Body, stanza.Position,
			toUnix(stanza.CreatedAt), toUnix(stanza.UpdatedAt),
		); err != nil {
			return fmt.Errorf("sqlite: inserting stanza: %w", err)
		}
		return nil
	})
}

// UpdateStanza replaces the body of one stanza of poemID.
func (db *DB) UpdateStanza(ctx context.Context, poemID, stanzaID, body string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE stanzas SET body = ?, updated_at = ? WHERE id = ? AND poem_id = ?`,
			body, toUnix(now()), stanzaID, poemID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating stanza %s: %w", stanzaID, err)
		}
		if err := expectOneRow(result, "stanza", stanzaID); err != nil {
			return err
		}
		return touchPoem(ctx, tx, poemID)
	})
}

// RemoveStanza deletes a stanza and closes the gap it leaves, so positions
// stay 0..N-1.
//
// TWO-PHASE RENUMBER:
// UNIQUE(poem_id, position) is checked per row, so shifting the tail down by
// one in a single UPDATE can collide midway. The survivors after the removed
// position are first moved to negative positions (never in use), then
// flipped back one lower.
func (db *DB) RemoveStanza(ctx context.Context, poemID, stanzaID string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		var position int
		err := tx.QueryRowContext(ctx,
			`SELECT position FROM stanzas WHERE id = ? AND poem_id = ?`, stanzaID, poemID,
		).Scan(&position)
		if err != nil {
			if err == sql.ErrNoRows {
				return apperror.NotFound("stanza", stanzaID)
			}
			return fmt.Errorf("sqlite: looking up stanza %s: %w", stanzaID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM stanzas WHERE id = ?`, stanzaID); err != nil {
			return fmt.Errorf("sqlite: deleting stanza %s: %w", stanzaID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE stanzas SET position = -position - 1 WHERE poem_id = ? AND position > ?`,
			poemID, position,
		); err != nil {
			return fmt.Errorf("sqlite: shifting stanzas: %w", err)
		}
		// -(p)-1 back to p-1: position = -stored - 2
		if _, err := tx.ExecContext(ctx,
			`UPDATE stanzas SET position = -position - 2 WHERE poem_id = ? AND position < 0`,
			poemID,
		); err != nil {
			return fmt.Errorf("sqlite: renumbering stanzas: %w", err)
		}

		return touchPoem(ctx, tx, poemID)
	})
}

// ReorderStanzas sets position i on ids[i]. ids must name every stanza of
// the poem exactly once; a partial or padded list is rejected and nothing
// moves.
func (db *DB) ReorderStanzas(ctx context.Context, poemID string, ids []string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if err := touchPoem(ctx, tx, poemID); err != nil {
			return err
		}

		current, err := stanzaIDs(ctx, tx, poemID)
		if err != nil {
			return err
		}
		if !isPermutation(current, ids) {
			return apperror.ValidationFailed("stanzaIds",
				fmt.Sprintf("must list each of the poem's %d stanzas exactly once", len(current)))
		}

		// Same two-phase trick as RemoveStanza: park everything on negative
		// positions, then assign the final ones.
		if _, err := tx.ExecContext(ctx,
			`UPDATE stanzas SET position = -position - 1 WHERE poem_id = ?`, poemID,
		); err != nil {
			return fmt.Errorf("sqlite: parking stanzas: %w", err)
		}

		ts := toUnix(now())
		for i, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`UPDATE stanzas SET position = ?, updated_at = ? WHERE id = ? AND poem_id = ?`,
				i, ts, id, poemID,
			); err != nil {
				return fmt.Errorf("sqlite: positioning stanza %s: %w", id, err)
			}
		}
		return nil
	})
}

func stanzaIDs(ctx context.Context, q querier, poemID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM stanzas WHERE poem_id = ? ORDER BY position`, poemID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing stanza ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning stanza id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// isPermutation reports whether got holds exactly the elements of want.
func isPermutation(want, got []string) bool {
	if len(want) != len(got) {
		return false
	}
	remaining := make(map[string]struct{}, len(want))
	for _, id := range want {
		remaining[id] = struct{}{}
	}
	for _, id := range got {
		if _, ok := remaining[id]; !ok {
			return false
		}
		delete(remaining, id)
	}
	return true
}
