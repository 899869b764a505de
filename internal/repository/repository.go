// Package repository declares the persistence contracts used by the service
// layer. Implementations live in sub-packages (see repository/sqlite).
package repository

import (
	"context"
	"time"

	"github.com/sakif/poit/internal/model"
)

// PoemFilter is the immutable, fully-resolved predicate for a poem listing.
//
// The zero value matches every poem. OwnerIDs, when non-nil, restricts the
// result to poems owned by one of the ids; an empty non-nil slice matches
// nothing. Search, when non-empty, narrows the owner restriction with an OR of
// case-insensitive substring matches on the title, any stanza body and, if
// SearchUsername is set, the owner's username.
type PoemFilter struct {
	OwnerIDs       []string
	Search         string
	SearchUsername bool
}

// PageKey is the sort position of a poem: updated_at DESC, then id DESC.
type PageKey struct {
	UpdatedAt time.Time
	ID        string
}

// PageOptions selects a slice of a filtered listing.
// After, when set, excludes every row up to and including that key.
type PageOptions struct {
	After *PageKey
	Limit int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

type FollowRepository interface {
	Follow(ctx context.Context, followerID, followingID string) error
	// FollowingIDs returns the ids of every user followerID follows.
	FollowingIDs(ctx context.Context, followerID string) ([]string, error)
}

// PoemRepository reads and writes poems and their stanzas.
//
// Poems returned by ListPoems and GetPoem carry their Author and their
// Stanzas sorted by position.
type PoemRepository interface {
	CreatePoem(ctx context.Context, poem *model.Poem) error
	GetPoem(ctx context.Context, id string) (*model.Poem, error)
	UpdatePoemTitle(ctx context.Context, id, title string) error
	DeletePoem(ctx context.Context, id string) error

	// PageKeyOf returns the sort key of an existing poem, or ErrNotFound.
	PageKeyOf(ctx context.Context, poemID string) (*PageKey, error)
	ListPoems(ctx context.Context, filter PoemFilter, page PageOptions) ([]model.Poem, error)
	CountPoems(ctx context.Context, filter PoemFilter) (int, error)

	AddStanza(ctx context.Context, stanza *model.Stanza) error
	UpdateStanza(ctx context.Context, poemID, stanzaID, body string) error
	RemoveStanza(ctx context.Context, poemID, stanzaID string) error
	// ReorderStanzas assigns position i to ids[i]. ids must be a permutation
	// of the poem's stanza ids; anything else is a validation error.
	ReorderStanzas(ctx context.Context, poemID string, ids []string) error
}
