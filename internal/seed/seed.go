// Package seed loads demo data from a TOML file through the services, so
// seeded rows pass the same validation as API writes.
//
// FILE FORMAT:
//
//	[[users]]
//	username = "alice"
//	email    = "alice@example.com"
//	password = "correct horse"
//
//	[[follows]]
//	follower  = "alice"
//	following = "bob"
//
//	[[poems]]
//	author  = "alice"
//	title   = "Ocean Waves"
//	stanzas = ["The tide rolls in", "and out again"]
//
// Users and follows refer to each other by username.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/sakif/poit/internal/apperror"
	"github.com/sakif/poit/internal/model"
)

// File is the decoded seed document.
type File struct {
	Users   []User   `toml:"users"`
	Follows []Follow `toml:"follows"`
	Poems   []Poem   `toml:"poems"`
}

type User struct {
	Username string `toml:"username"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

type Follow struct {
	Follower  string `toml:"follower"`
	Following string `toml:"following"`
}

type Poem struct {
	Author  string   `toml:"author"`
	Title   string   `toml:"title"`
	Stanzas []string `toml:"stanzas"`
}

// Load reads and decodes the seed file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a seed document. Unknown keys are rejected so a typo like
// "stanza" instead of "stanzas" fails loudly instead of seeding empty poems.
func Parse(data []byte) (*File, error) {
	var f File
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("seed: unknown keys:\n%s", strict.String())
		}
		return nil, fmt.Errorf("seed: decoding: %w", err)
	}
	return &f, nil
}

// Users is the subset of service.UserService that seeding needs.
type Users interface {
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Follow(ctx context.Context, followerID, followingID string) error
}

// Poems is the subset of service.PoemService that seeding needs.
type Poems interface {
	Create(ctx context.Context, requesterID, title string) (*model.Poem, error)
	AddStanza(ctx context.Context, requesterID, poemID, body string) (*model.Stanza, error)
}

// Summary counts what Apply wrote.
type Summary struct {
	UsersCreated  int
	UsersExisting int
	Follows       int
	Poems         int
	Stanzas       int
}

// Apply writes f in order: users, then follows, then poems.
//
// RE-RUNNING:
// Users that already exist are reused and existing follows are skipped, so
// running the same file twice only duplicates the poems.
func Apply(ctx context.Context, f *File, users Users, poems Poems) (Summary, error) {
	var sum Summary
	ids := make(map[string]string, len(f.Users))

	resolve := func(username string) (string, error) {
		if id, ok := ids[username]; ok {
			return id, nil
		}
		u, err := users.GetByUsername(ctx, username)
		if err != nil {
			return "", fmt.Errorf("seed: resolving %q: %w", username, err)
		}
		ids[username] = u.ID
		return u.ID, nil
	}

	for _, u := range f.Users {
		created, err := users.Register(ctx, u.Username, u.Email, u.Password)
		switch {
		case err == nil:
			ids[created.Username] = created.ID
			sum.UsersCreated++
		case errors.Is(err, apperror.ErrConflict):
			if _, err := resolve(u.Username); err != nil {
				return sum, err
			}
			sum.UsersExisting++
		default:
			return sum, fmt.Errorf("seed: user %q: %w", u.Username, err)
		}
	}

	for _, fl := range f.Follows {
		follower, err := resolve(fl.Follower)
		if err != nil {
			return sum, err
		}
		following, err := resolve(fl.Following)
		if err != nil {
			return sum, err
		}
		if err := users.Follow(ctx, follower, following); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				continue
			}
			return sum, fmt.Errorf("seed: %s follows %s: %w", fl.Follower, fl.Following, err)
		}
		sum.Follows++
	}

	for i, p := range f.Poems {
		author, err := resolve(p.Author)
		if err != nil {
			return sum, err
		}
		poem, err := poems.Create(ctx, author, p.Title)
		if err != nil {
			return sum, fmt.Errorf("seed: poem %d (%q): %w", i, p.Title, err)
		}
		sum.Poems++

		for j, body := range p.Stanzas {
			if _, err := poems.AddStanza(ctx, author, poem.ID, body); err != nil {
				return sum, fmt.Errorf("seed: poem %q stanza %d: %w", p.Title, j, err)
			}
			sum.Stanzas++
		}
	}

	return sum, nil
}
