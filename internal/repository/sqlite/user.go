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

// compile-time checks that *DB implements the user-facing repositories
var (
	_ repository.UserRepository   = (*DB)(nil)
	_ repository.FollowRepository = (*DB)(nil)
)

// CreateUser inserts a new user, filling in ID and timestamps.
// A duplicate username or email is reported as apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	ts := now()
	user.ID = xid.New().String()
	user.CreatedAt = ts
	user.UpdatedAt = ts

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, profile_picture, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.ProfilePicture,
		toUnix(user.CreatedAt),
		toUnix(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, profile_picture, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by their unique username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, profile_picture, created_at, updated_at
		 FROM users WHERE username = ?`,
		username,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %q: %w", username, err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u                    model.User
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.ProfilePicture,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	u.CreatedAt = fromUnix(createdAt)
	u.UpdatedAt = fromUnix(updatedAt)
	return &u, nil
}

// Follow records that followerID follows followingID.
//
// ERROR TRANSLATION:
//   - PRIMARY KEY violation → already following → ErrConflict
//   - FOREIGN KEY violation → one of the users does not exist → ErrNotFound
//   - CHECK violation       → self-follow → ErrValidation
func (db *DB) Follow(ctx context.Context, followerID, followingID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO follows (follower_id, following_id, created_at) VALUES (?, ?, ?)`,
		followerID, followingID, toUnix(now()),
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return apperror.Conflict("follow", followingID)
	case isForeignKeyViolation(err):
		return apperror.NotFound("user", followingID)
	case isCheckViolation(err):
		return apperror.ValidationFailed("followingId", "users cannot follow themselves")
	default:
		return fmt.Errorf("sqlite: %s following %s: %w", followerID, followingID, err)
	}
}

// FollowingIDs returns the ids followerID follows, oldest follow first.
func (db *DB) FollowingIDs(ctx context.Context, followerID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT following_id FROM follows WHERE follower_id = ? ORDER BY created_at, following_id`,
		followerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing follows of %s: %w", followerID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning follow row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating follows: %w", err)
	}
	return ids, nil
}
