package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/poit/internal/apperror"
	"github.com/sakif/poit/internal/model"
	"github.com/sakif/poit/internal/repository"
	"github.com/sakif/poit/internal/textfold"
)

// selectPoems is the projection shared by every poem read. The users join
// supplies the author and is also what the username search predicate tests.
const selectPoems = `SELECT p.id, p.user_id, p.title, p.created_at, p.updated_at,
	       u.username, u.profile_picture
	  FROM poems p
	  JOIN users u ON u.id = p.user_id`

// ListPoems returns one page of poems matching filter, newest update first.
//
// KEYSET PAGINATION:
// Instead of OFFSET, the page starts strictly after page.After in the sort
// order (updated_at DESC, id DESC):
//
//	updated_at < :ts OR (updated_at = :ts AND id < :id)
//
// The id tiebreak makes the order total, so poems sharing a timestamp are
// never skipped or repeated across pages.
func (db *DB) ListPoems(ctx context.Context, filter repository.PoemFilter, page repository.PageOptions) ([]model.Poem, error) {
	where, args := buildPoemWhere(filter)

	if page.After != nil {
		where = append(where, `(p.updated_at < ? OR (p.updated_at = ? AND p.id < ?))`)
		ts := toUnix(page.After.UpdatedAt)
		args = append(args, ts, ts, page.After.ID)
	}

	query := selectPoems + whereClause(where) + `
	 ORDER BY p.updated_at DESC, p.id DESC
	 LIMIT ?`
	args = append(args, page.Limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing poems: %w", err)
	}
	poems, err := scanPoems(rows, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing poems: %w", err)
	}

	// The rows are closed before stanzas are fetched: an in-memory database
	// has a single connection and a nested query would wait on it forever.
	if err := db.attachStanzas(ctx, db.conn, poems); err != nil {
		return nil, err
	}
	return poems, nil
}

// CountPoems counts every poem matching filter, ignoring pagination.
func (db *DB) CountPoems(ctx context.Context, filter repository.PoemFilter) (int, error) {
	where, args := buildPoemWhere(filter)

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM poems p JOIN users u ON u.id = p.user_id`+whereClause(where),
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting poems: %w", err)
	}
	return count, nil
}

// PageKeyOf resolves a cursor (a poem id) to its position in the sort order.
func (db *DB) PageKeyOf(ctx context.Context, poemID string) (*repository.PageKey, error) {
	var updatedAt int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT updated_at FROM poems WHERE id = ?`, poemID,
	).Scan(&updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("poem", poemID)
		}
		return nil, fmt.Errorf("sqlite: resolving cursor %s: %w", poemID, err)
	}
	return &repository.PageKey{UpdatedAt: fromUnix(updatedAt), ID: poemID}, nil
}

// buildPoemWhere turns a filter into AND-ed SQL predicates and their args.
// The search OR-group is one predicate, so it can only narrow the owner set.
func buildPoemWhere(filter repository.PoemFilter) ([]string, []any) {
	var (
		where []string
		args  []any
	)

	if filter.OwnerIDs != nil {
		if len(filter.OwnerIDs) == 0 {
			where = append(where, `0 = 1`)
		} else {
			where = append(where, `p.user_id IN (`+placeholders(len(filter.OwnerIDs))+`)`)
			for _, id := range filter.OwnerIDs {
				args = append(args, id)
			}
		}
	}

	if filter.Search != "" {
		// instr on folded text is a plain substring test: no wildcard
		// characters to escape, and Unicode case folding on both sides.
		needle := textfold.Fold(filter.Search)
		or := []string{
			`instr(` + foldFunc + `(p.title), ?) > 0`,
			`EXISTS (SELECT 1 FROM stanzas s WHERE s.poem_id = p.id AND instr(` + foldFunc + `(s.body), ?) > 0)`,
		}
		args = append(args, needle, needle)
		if filter.SearchUsername {
			or = append(or, `instr(`+foldFunc+`(u.username), ?) > 0`)
			args = append(args, needle)
		}
		where = append(where, `(`+strings.Join(or, ` OR `)+`)`)
	}

	return where, args
}

func whereClause(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return "\n\t WHERE " + strings.Join(where, "\n\t   AND ")
}

// scanPoems drains rows into poems (without stanzas) and closes rows.
func scanPoems(rows *sql.Rows, capHint int) ([]model.Poem, error) {
	defer rows.Close()

	poems := make([]model.Poem, 0, capHint)
	for rows.Next() {
		var (
			p                    model.Poem
			createdAt, updatedAt int64
		)
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Title, &createdAt, &updatedAt,
			&p.Author.Username, &p.Author.ProfilePicture,
		); err != nil {
			return nil, fmt.Errorf("scanning poem row: %w", err)
		}
		p.Author.ID = p.UserID
		p.CreatedAt = fromUnix(createdAt)
		p.UpdatedAt = fromUnix(updatedAt)
		p.Stanzas = []model.Stanza{}
		poems = append(poems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating poems: %w", err)
	}
	return poems, nil
}

// attachStanzas loads the stanzas of every poem in one query and assigns
// them in position order.
func (db *DB) attachStanzas(ctx context.Context, q querier, poems []model.Poem) error {
	if len(poems) == 0 {
		return nil
	}

	ids := make([]any, len(poems))
	index := make(map[string]int, len(poems))
	for i, p := range poems {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, poem_id, body, position, created_at, updated_at
		   FROM stanzas
		  WHERE poem_id IN (`+placeholders(len(ids))+`)
		  ORDER BY poem_id, position`,
		ids...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading stanzas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanStanza(rows)
		if err != nil {
			return fmt.Errorf("sqlite: scanning stanza row: %w", err)
		}
		i := index[s.PoemID]
		poems[i].Stanzas = append(poems[i].Stanzas, s)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating stanzas: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStanza(row rowScanner) (model.Stanza, error) {
	var (
		s                    model.Stanza
		createdAt, updatedAt int64
	)
	if err := row.Scan(&s.ID, &s.PoemID, &s.Body, &s.Position, &createdAt, &updatedAt); err != nil {
		return model.Stanza{}, err
	}
	s.CreatedAt = fromUnix(createdAt)
	s.UpdatedAt = fromUnix(updatedAt)
	return s, nil
}
