package model

import "time"

// DefaultPoemTitle is used when a poem is created without a title.
const DefaultPoemTitle = "Untitled Poem"

// Poem is a titled, ordered collection of stanzas owned by one user.
//
// Stanzas are always kept sorted by Position, and positions form the
// contiguous sequence 0..len(Stanzas)-1.
type Poem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Author    Author    `json:"author"`
	Stanzas   []Stanza  `json:"stanzas"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stanza is one block of text inside a poem.
type Stanza struct {
	ID        string    `json:"id"`
	PoemID    string    `json:"poemId"`
	Body      string    `json:"body"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AnnotatedPoem is a Poem as seen by a particular requester, optionally
// decorated with search-match metadata.
//
// Embedding Poem promotes its fields, so the JSON output is flat:
// {"id":..., "title":..., "stanzas":[...], "isOwner":true, "searchMatches":{...}}
type AnnotatedPoem struct {
	Poem
	IsOwner       bool           `json:"isOwner"`
	SearchMatches *SearchMatches `json:"searchMatches,omitempty"`
}

// SearchMatches describes where a search term was found in a poem.
//
// UsernameMatch is a pointer so that views which never search usernames
// (own poems, a single user's poems) omit the field instead of reporting false.
type SearchMatches struct {
	TitleMatch      bool             `json:"titleMatch"`
	UsernameMatch   *bool            `json:"usernameMatch,omitempty"`
	MatchingStanzas []MatchingStanza `json:"matchingStanzas"`
}

// MatchingStanza locates the first occurrence of a search term in a stanza.
// MatchIndex is the character offset of the match inside Snippet.
type MatchingStanza struct {
	ID         string `json:"id"`
	Position   int    `json:"position"`
	Snippet    string `json:"snippet"`
	MatchIndex int    `json:"matchIndex"`
}
