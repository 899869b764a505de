package seed

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/poit/internal/auth"
	"github.com/sakif/poit/internal/repository/sqlite"
	"github.com/sakif/poit/internal/service"
)

const sample = `
[[users]]
username = "alice"
email    = "alice@example.com"
password = "correct horse"

[[users]]
username = "bob"
email    = "bob@example.com"
password = "battery staple"

[[follows]]
follower  = "alice"
following = "bob"

[[poems]]
author  = "alice"
title   = "Ocean Waves"
stanzas = ["The tide rolls in", "and out again"]

[[poems]]
author = "bob"
title  = "Empty"
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	want := &File{
		Users: []User{
			{Username: "alice", Email: "alice@example.com", Password: "correct horse"},
			{Username: "bob", Email: "bob@example.com", Password: "battery staple"},
		},
		Follows: []Follow{{Follower: "alice", Following: "bob"}},
		Poems: []Poem{
			{Author: "alice", Title: "Ocean Waves", Stanzas: []string{"The tide rolls in", "and out again"}},
			{Author: "bob", Title: "Empty"},
		},
	}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("[[poems]]\nauthor = \"a\"\nstanza = [\"typo\"]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stanza")
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("[[users]\nusername ="))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Users, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func newServices(t *testing.T) (*sqlite.DB, *service.UserService, *service.PoemService) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return db,
		service.NewUserService(db, db, auth.NewPasswordServiceForTest(4), logger),
		service.NewPoemService(db, logger)
}

func TestApply(t *testing.T) {
	db, users, poems := newServices(t)
	ctx := context.Background()

	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	sum, err := Apply(ctx, f, users, poems)
	require.NoError(t, err)
	assert.Equal(t, Summary{UsersCreated: 2, Follows: 1, Poems: 2, Stanzas: 2}, sum)

	alice, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	following, err := db.FollowingIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, following, 1)

	t.Run("second run reuses users and follows", func(t *testing.T) {
		sum, err := Apply(ctx, f, users, poems)
		require.NoError(t, err)
		assert.Equal(t, Summary{UsersExisting: 2, Poems: 2, Stanzas: 2}, sum)
	})
}

func TestApply_Errors(t *testing.T) {
	tests := []struct {
		name string
		file *File
	}{
		{"unknown author", &File{Poems: []Poem{{Author: "ghost", Title: "x"}}}},
		{"unknown follower", &File{Follows: []Follow{{Follower: "ghost", Following: "ghost2"}}}},
		{"invalid user", &File{Users: []User{{Username: "a", Email: "a@example.com", Password: "password1"}}}},
		{"self follow", &File{
			Users:   []User{{Username: "solo", Email: "solo@example.com", Password: "password1"}},
			Follows: []Follow{{Follower: "solo", Following: "solo"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, users, poems := newServices(t)
			_, err := Apply(context.Background(), tt.file, users, poems)
			assert.Error(t, err)
		})
	}
}
