package service

import (
	"context"
	"strings"
	"testing"

	"github.com/sakif/poit/internal/apperror"
	"github.com/sakif/poit/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPoemService(t *testing.T) (*PoemService, *model.User, *model.User) {
	t.Helper()
	db := newTestStore(t)
	ctx := context.Background()

	owner := &model.User{Username: "owner", Email: "owner@example.com", PasswordHash: "h"}
	other := &model.User{Username: "other", Email: "other@example.com", PasswordHash: "h"}
	require.NoError(t, db.CreateUser(ctx, owner))
	require.NoError(t, db.CreateUser(ctx, other))

	return NewPoemService(db, discardLogger()), owner, other
}

func bodies(p *model.Poem) []string {
	out := make([]string, len(p.Stanzas))
	for i, s := range p.Stanzas {
		out[i] = s.Body
	}
	return out
}

// =========================================================================
// CREATE / GET
// =========================================================================

func TestPoemCreate(t *testing.T) {
	svc, owner, _ := newPoemService(t)

	poem, err := svc.Create(context.Background(), owner.ID, "  Spring  ")
	require.NoError(t, err)
	assert.NotEmpty(t, poem.ID)
	assert.Equal(t, "Spring", poem.Title)
	assert.Equal(t, "owner", poem.Author.Username)
	assert.Empty(t, poem.Stanzas)
}

func TestPoemCreate_DefaultTitle(t *testing.T) {
	svc, owner, _ := newPoemService(t)

	for _, title := range []string{"", "   "} {
		poem, err := svc.Create(context.Background(), owner.ID, title)
		require.NoError(t, err)
		assert.Equal(t, model.DefaultPoemTitle, poem.Title)
	}
}

func TestPoemCreate_Validation(t *testing.T) {
	svc, owner, _ := newPoemService(t)

	_, err := svc.Create(context.Background(), owner.ID, strings.Repeat("a", MaxPoemTitleLength+1))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	// Characters, not bytes
	_, err = svc.Create(context.Background(), owner.ID, strings.Repeat("é", MaxPoemTitleLength))
	assert.NoError(t, err)

	_, err = svc.Create(context.Background(), "", "anonymous")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = svc.Create(context.Background(), "deleted-user", "ghost")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestPoemGet_IsOwner(t *testing.T) {
	svc, owner, other := newPoemService(t)
	ctx := context.Background()
	poem, err := svc.Create(ctx, owner.ID, "mine")
	require.NoError(t, err)

	tests := []struct {
		name      string
		requester string
		want      bool
	}{
		{"owner", owner.ID, true},
		{"someone else", other.ID, false},
		{"anonymous", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Get(ctx, tt.requester, poem.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.IsOwner)
			assert.Nil(t, got.SearchMatches)
		})
	}

	_, err = svc.Get(ctx, "", "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// OWNERSHIP
// =========================================================================

func TestPoemMutations_RequireOwner(t *testing.T) {
	svc, owner, other := newPoemService(t)
	ctx := context.Background()
	poem, err := svc.Create(ctx, owner.ID, "guarded")
	require.NoError(t, err)
	stanza, err := svc.AddStanza(ctx, owner.ID, poem.ID, "line")
	require.NoError(t, err)

	mutations := map[string]func(requester, poemID string) error{
		"rename": func(r, id string) error { _, err := svc.Rename(ctx, r, id, "x"); return err },
		"delete": func(r, id string) error { return svc.Delete(ctx, r, id) },
		"add":    func(r, id string) error { _, err := svc.AddStanza(ctx, r, id, "x"); return err },
		"update": func(r, id string) error { _, err := svc.UpdateStanza(ctx, r, id, stanza.ID, "x"); return err },
		"remove": func(r, id string) error { _, err := svc.RemoveStanza(ctx, r, id, stanza.ID); return err },
		"reorder": func(r, id string) error {
			_, err := svc.ReorderStanzas(ctx, r, id, []string{stanza.ID})
			return err
		},
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, mutate("", poem.ID), apperror.ErrUnauthorized)
			assert.ErrorIs(t, mutate(other.ID, poem.ID), apperror.ErrForbidden)
			assert.ErrorIs(t, mutate(owner.ID, "missing"), apperror.ErrNotFound)
		})
	}

	// Nothing above touched the poem.
	got, err := svc.Get(ctx, owner.ID, poem.ID)
	require.NoError(t, err)
	assert.Equal(t, "guarded", got.Title)
	assert.Equal(t, []string{"line"}, bodies(&got.Poem))
}

// =========================================================================
// STANZA LIFECYCLE
// =========================================================================

func TestStanzaLifecycle(t *testing.T) {
	svc, owner, _ := newPoemService(t)
	ctx := context.Background()
	poem, err := svc.Create(ctx, owner.ID, "seasons")
	require.NoError(t, err)

	var ids []string
	for i, body := range []string{"spring", "summer", "autumn", "winter"} {
		s, err := svc.AddStanza(ctx, owner.ID, poem.ID, body)
		require.NoError(t, err)
		assert.Equal(t, i, s.Position, "appended at the end")
		ids = append(ids, s.ID)
	}

	updated, err := svc.UpdateStanza(ctx, owner.ID, poem.ID, ids[1], "high summer")
	require.NoError(t, err)
	assert.Equal(t, []string{"spring", "high summer", "autumn", "winter"}, bodies(updated))

	removed, err := svc.RemoveStanza(ctx, owner.ID, poem.ID, ids[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"high summer", "autumn", "winter"}, bodies(removed))
	for i, s := range removed.Stanzas {
		assert.Equal(t, i, s.Position)
	}

	reordered, err := svc.ReorderStanzas(ctx, owner.ID, poem.ID, []string{ids[3], ids[2], ids[1]})
	require.NoError(t, err)
	assert.Equal(t, []string{"winter", "autumn", "high summer"}, bodies(reordered))

	_, err = svc.ReorderStanzas(ctx, owner.ID, poem.ID, []string{ids[3], ids[2]})
	assert.ErrorIs(t, err, apperror.ErrValidation, "partial permutation")

	_, err = svc.ReorderStanzas(ctx, owner.ID, poem.ID, []string{ids[3], ids[2], ids[0]})
	assert.ErrorIs(t, err, apperror.ErrValidation, "removed stanza id")
}

func TestStanzaBodyLimit(t *testing.T) {
	svc, owner, _ := newPoemService(t)
	ctx := context.Background()
	poem, err := svc.Create(ctx, owner.ID, "long")
	require.NoError(t, err)

	_, err = svc.AddStanza(ctx, owner.ID, poem.ID, strings.Repeat("a", MaxStanzaBodyLength+1))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.AddStanza(ctx, owner.ID, poem.ID, strings.Repeat("a", MaxStanzaBodyLength))
	assert.NoError(t, err)
}

func TestPoemRename(t *testing.T) {
	svc, owner, _ := newPoemService(t)
	ctx := context.Background()
	poem, err := svc.Create(ctx, owner.ID, "draft")
	require.NoError(t, err)

	_, err = svc.Rename(ctx, owner.ID, poem.ID, "   ")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	renamed, err := svc.Rename(ctx, owner.ID, poem.ID, " final ")
	require.NoError(t, err)
	assert.Equal(t, "final", renamed.Title)
	assert.False(t, renamed.UpdatedAt.Before(poem.UpdatedAt))
}

func TestPoemDelete(t *testing.T) {
	svc, owner, _ := newPoemService(t)
	ctx := context.Background()
	poem, err := svc.Create(ctx, owner.ID, "brief")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, owner.ID, poem.ID))

	_, err = svc.Get(ctx, owner.ID, poem.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
