package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sakif/poit/internal/apperror"
	"github.com/sakif/poit/internal/model"
	"github.com/sakif/poit/internal/repository"
	"github.com/sakif/poit/internal/repository/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listingFixture is a small social graph:
//
//	alice follows bob; carol is a stranger.
type listingFixture struct {
	db      *sqlite.DB
	listing *PoemListingService
	poems   *PoemService
	alice   *model.User
	bob     *model.User
	carol   *model.User
}

func newListingFixture(t *testing.T) *listingFixture {
	t.Helper()
	db := newTestStore(t)
	ctx := context.Background()

	f := &listingFixture{
		db:      db,
		listing: NewPoemListingService(db, db, db, discardLogger()),
		poems:   NewPoemService(db, discardLogger()),
	}
	newUser := func(name string) *model.User {
		u := &model.User{Username: name, Email: name + "@example.com", PasswordHash: "h"}
		require.NoError(t, db.CreateUser(ctx, u))
		return u
	}
	f.alice = newUser("alice")
	f.bob = newUser("bob")
	f.carol = newUser("carol")
	require.NoError(t, db.Follow(ctx, f.alice.ID, f.bob.ID))
	return f
}

// write creates a poem for owner with the given stanza bodies.
func (f *listingFixture) write(t *testing.T, owner *model.User, title string, bodies ...string) *model.Poem {
	t.Helper()
	ctx := context.Background()
	p, err := f.poems.Create(ctx, owner.ID, title)
	require.NoError(t, err)
	for _, b := range bodies {
		_, err := f.poems.AddStanza(ctx, owner.ID, p.ID, b)
		require.NoError(t, err)
	}
	return p
}

func poemIDs(poems []model.AnnotatedPoem) []string {
	out := make([]string, len(poems))
	for i, p := range poems {
		out[i] = p.ID
	}
	return out
}

// =========================================================================
// PAGINATION
// =========================================================================

func TestList_TwelvePoemsInTwoPages(t *testing.T) {
	f := newListingFixture(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		f.write(t, f.alice, fmt.Sprintf("poem %d", i))
	}

	first, err := f.listing.List(ctx, ListRequest{Audience: Own(f.alice.ID), RequesterID: f.alice.ID, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, first.Poems, 10)
	assert.Equal(t, 12, first.TotalCount)
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, first.Poems[9].ID, *first.NextCursor)
	assert.Equal(t, "poem 11", first.Poems[0].Title, "most recently updated first")

	second, err := f.listing.List(ctx, ListRequest{
		Audience:    Own(f.alice.ID),
		RequesterID: f.alice.ID,
		Cursor:      *first.NextCursor,
		Limit:       10,
	})
	require.NoError(t, err)
	assert.Len(t, second.Poems, 2)
	assert.Nil(t, second.NextCursor)
	assert.Equal(t, 12, second.TotalCount, "count ignores the cursor")

	// Pages are disjoint and cover everything.
	all := append(poemIDs(first.Poems), poemIDs(second.Poems)...)
	seen := map[string]bool{}
	for _, id := range all {
		assert.False(t, seen[id], "poem %s repeated", id)
		seen[id] = true
	}
	assert.Len(t, seen, 12)
}

func TestList_ExactPageHasNoNextCursor(t *testing.T) {
	f := newListingFixture(t)
	for i := 0; i < 3; i++ {
		f.write(t, f.alice, "p")
	}

	res, err := f.listing.List(context.Background(), ListRequest{Audience: All(), Limit: 3})
	require.NoError(t, err)
	assert.Len(t, res.Poems, 3)
	assert.Nil(t, res.NextCursor)
}

func TestList_EmptyOwnPoems(t *testing.T) {
	f := newListingFixture(t)

	res, err := f.listing.List(context.Background(), ListRequest{Audience: Own(f.carol.ID), RequesterID: f.carol.ID, Limit: 10})
	require.NoError(t, err)

	assert.NotNil(t, res.Poems)
	assert.Empty(t, res.Poems)
	assert.Nil(t, res.NextCursor)
	assert.Zero(t, res.TotalCount)
}

func TestList_LimitIsClamped(t *testing.T) {
	f := newListingFixture(t)
	for i := 0; i < 3; i++ {
		f.write(t, f.alice, "p")
	}

	res, err := f.listing.List(context.Background(), ListRequest{Audience: All(), Limit: 0})
	require.NoError(t, err)
	assert.Len(t, res.Poems, 1, "limit 0 is raised to 1")
	assert.NotNil(t, res.NextCursor)

	res, err = f.listing.List(context.Background(), ListRequest{Audience: All(), Limit: 500})
	require.NoError(t, err)
	assert.Len(t, res.Poems, 3)
}

func TestList_UnknownCursor(t *testing.T) {
	f := newListingFixture(t)
	f.write(t, f.alice, "p")

	_, err := f.listing.List(context.Background(), ListRequest{Audience: All(), Cursor: "deleted-poem", Limit: 10})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestList_RenameMovesPoemToFront(t *testing.T) {
	f := newListingFixture(t)
	ctx := context.Background()
	old := f.write(t, f.alice, "old")
	f.write(t, f.alice, "new")

	_, err := f.poems.Rename(ctx, f.alice.ID, old.ID, "old, revised")
	require.NoError(t, err)

	res, err := f.listing.List(ctx, ListRequest{Audience: All(), Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, old.ID, res.Poems[0].ID)
}

// =========================================================================
// AUDIENCES
// =========================================================================

func TestList_Audiences(t *testing.T) {
	f := newListingFixture(t)
	a := f.write(t, f.alice, "by alice")
	b := f.write(t, f.bob, "by bob")
	c := f.write(t, f.carol, "by carol")

	tests := []struct {
		name      string
		req       ListRequest
		wantIDs   []string
		wantOwner map[string]bool
	}{
		{
			name:      "all, anonymous",
			req:       ListRequest{Audience: All()},
			wantIDs:   []string{a.ID, b.ID, c.ID},
			wantOwner: map[string]bool{a.ID: false, b.ID: false, c.ID: false},
		},
		{
			name:      "all, as bob",
			req:       ListRequest{Audience: All(), RequesterID: f.bob.ID},
			wantIDs:   []string{a.ID, b.ID, c.ID},
			wantOwner: map[string]bool{a.ID: false, b.ID: true, c.ID: false},
		},
		{
			name:      "own",
			req:       ListRequest{Audience: Own(f.alice.ID), RequesterID: f.alice.ID},
			wantIDs:   []string{a.ID},
			wantOwner: map[string]bool{a.ID: true},
		},
		{
			name:      "feed is self plus followed",
			req:       ListRequest{Audience: Feed(f.alice.ID), RequesterID: f.alice.ID},
			wantIDs:   []string{a.ID, b.ID},
			wantOwner: map[string]bool{a.ID: true, b.ID: false},
		},
		{
			name:      "feed with no follows is self only",
			req:       ListRequest{Audience: Feed(f.carol.ID), RequesterID: f.carol.ID},
			wantIDs:   []string{c.ID},
			wantOwner: map[string]bool{c.ID: true},
		},
		{
			name:      "user, viewed by someone else",
			req:       ListRequest{Audience: User(f.bob.ID), RequesterID: f.alice.ID},
			wantIDs:   []string{b.ID},
			wantOwner: map[string]bool{b.ID: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Limit = 10
			res, err := f.listing.List(context.Background(), tt.req)
			require.NoError(t, err)

			assert.ElementsMatch(t, tt.wantIDs, poemIDs(res.Poems))
			assert.Equal(t, len(tt.wantIDs), res.TotalCount)
			for _, p := range res.Poems {
				assert.Equal(t, tt.wantOwner[p.ID], p.IsOwner, "isOwner for %s", p.Title)
			}
		})
	}
}

func TestList_AudienceErrors(t *testing.T) {
	f := newListingFixture(t)

	tests := []struct {
		name    string
		req     ListRequest
		wantErr error
	}{
		{"own without requester", ListRequest{Audience: Own("")}, apperror.ErrUnauthorized},
		{"feed without requester", ListRequest{Audience: Feed("")}, apperror.ErrUnauthorized},
		{"unknown user", ListRequest{Audience: User("ghost")}, apperror.ErrNotFound},
		{"blank user", ListRequest{Audience: User("")}, apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.listing.List(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// =========================================================================
// SEARCH
// =========================================================================

func TestList_OceanWavesExample(t *testing.T) {
	f := newListingFixture(t)
	f.write(t, f.alice, "Ocean Waves", "The tide rises slowly each morning")
	f.write(t, f.alice, "Desert", "dry")

	res, err := f.listing.List(context.Background(), ListRequest{
		Audience:    Own(f.alice.ID),
		RequesterID: f.alice.ID,
		Limit:       10,
		Search:      "  tide ",
	})
	require.NoError(t, err)
	require.Len(t, res.Poems, 1)
	assert.Equal(t, 1, res.TotalCount)

	m := res.Poems[0].SearchMatches
	require.NotNil(t, m)
	assert.False(t, m.TitleMatch)
	assert.Nil(t, m.UsernameMatch, "own view does not search usernames")
	require.Len(t, m.MatchingStanzas, 1)

	hit := m.MatchingStanzas[0]
	assert.Contains(t, hit.Snippet, "tide")
	assert.Equal(t, "tide", hit.Snippet[hit.MatchIndex:hit.MatchIndex+4])
	assert.Equal(t, 0, hit.Position)
}

func TestList_UsernameSearchOnlyInMixedViews(t *testing.T) {
	f := newListingFixture(t)
	b := f.write(t, f.bob, "Untitled", "nothing here")

	all, err := f.listing.List(context.Background(), ListRequest{Audience: All(), Search: "BO", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []string{b.ID}, poemIDs(all.Poems))
	require.NotNil(t, all.Poems[0].SearchMatches.UsernameMatch)
	assert.True(t, *all.Poems[0].SearchMatches.UsernameMatch)

	user, err := f.listing.List(context.Background(), ListRequest{Audience: User(f.bob.ID), Search: "bo", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, user.Poems, "username is not a match source for a single user's poems")
	assert.Zero(t, user.TotalCount)
}

func TestList_SearchNarrows(t *testing.T) {
	f := newListingFixture(t)
	f.write(t, f.alice, "Ocean Waves", "The tide rises")
	f.write(t, f.bob, "Harbor", "boats at low tide")
	f.write(t, f.carol, "Forest", "pine")
	f.write(t, f.carol, "50% Moon", "half_lit")

	base, err := f.listing.List(context.Background(), ListRequest{Audience: All(), Limit: 50})
	require.NoError(t, err)
	universe := map[string]bool{}
	for _, id := range poemIDs(base.Poems) {
		universe[id] = true
	}

	for _, term := range []string{"tide", "o", "%", "_", "zzz", "CAROL"} {
		res, err := f.listing.List(context.Background(), ListRequest{Audience: All(), Search: term, Limit: 50})
		require.NoError(t, err)
		assert.LessOrEqual(t, res.TotalCount, base.TotalCount, "term %q", term)
		for _, id := range poemIDs(res.Poems) {
			assert.True(t, universe[id], "term %q returned a poem outside the audience", term)
		}
	}
}

func TestList_AccentedSearchMatchesFilterAndAnnotation(t *testing.T) {
	f := newListingFixture(t)
	summer := f.write(t, f.alice, "ÉTÉ ÉTERNEL", "soleil")
	oil := f.write(t, f.bob, "Mischung", "Wir mischen ÖL UND WASSER")
	f.write(t, f.carol, "ete without accents", "ol")

	tests := []struct {
		term       string
		want       *model.Poem
		titleMatch bool
		snippet    string
	}{
		{term: "été", want: summer, titleMatch: true},
		{term: "öl", want: oil, snippet: "Wir mischen ÖL UND WASSER"},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			res, err := f.listing.List(context.Background(), ListRequest{Audience: All(), Search: tt.term, Limit: 10})
			require.NoError(t, err)
			require.Equal(t, []string{tt.want.ID}, poemIDs(res.Poems))
			assert.Equal(t, 1, res.TotalCount)

			m := res.Poems[0].SearchMatches
			require.NotNil(t, m)
			assert.Equal(t, tt.titleMatch, m.TitleMatch)
			if tt.snippet == "" {
				assert.Empty(t, m.MatchingStanzas)
				return
			}
			require.Len(t, m.MatchingStanzas, 1)
			hit := m.MatchingStanzas[0]
			assert.Equal(t, tt.snippet, hit.Snippet)
			runes := []rune(hit.Snippet)
			assert.Equal(t, "ÖL", string(runes[hit.MatchIndex:hit.MatchIndex+2]))
		})
	}
}

func TestList_BlankSearchIsNoSearch(t *testing.T) {
	f := newListingFixture(t)
	f.write(t, f.alice, "p", "s")

	res, err := f.listing.List(context.Background(), ListRequest{Audience: All(), Search: "   ", Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Poems, 1)
	assert.Nil(t, res.Poems[0].SearchMatches)
}

// =========================================================================
// FAILURE PROPAGATION
// =========================================================================

// failingPoemRepo blocks the page query until its context is cancelled and
// fails the count, to check that one failure cancels and fails the whole call.
type failingPoemRepo struct {
	repository.PoemRepository
	countErr error
}

func (r *failingPoemRepo) ListPoems(ctx context.Context, _ repository.PoemFilter, _ repository.PageOptions) ([]model.Poem, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (r *failingPoemRepo) CountPoems(context.Context, repository.PoemFilter) (int, error) {
	return 0, r.countErr
}

func TestList_CountFailureFailsListing(t *testing.T) {
	db := newTestStore(t)
	boom := errors.New("disk on fire")
	svc := NewPoemListingService(&failingPoemRepo{countErr: boom}, db, db, discardLogger())

	res, err := svc.List(context.Background(), ListRequest{Audience: All(), Limit: 10})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", DefaultListLimit},
		{"abc", DefaultListLimit},
		{"7", 7},
		{" 12 ", 12},
		{"0", 1},
		{"-3", 1},
		{"51", MaxListLimit},
		{"50", 50},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLimit(tt.raw), "ParseLimit(%q)", tt.raw)
	}
}
