package service

import (
	"strings"
	"unicode/utf8"

	"github.com/sakif/poit/internal/model"
	"github.com/sakif/poit/internal/textfold"
)

// snippetContext is how many characters of stanza text are kept on each side
// of a match.
const snippetContext = 50

const ellipsis = "..."

// annotate decorates one listed poem for requesterID. When term is empty the
// SearchMatches block is left nil and is omitted from JSON.
//
// CHARACTERS, NOT BYTES:
// Windows and matchIndex count Unicode code points, which is what a client
// would index into. textfold.Fold keeps the rune count, so a rune index
// found in the folded text is valid in the original. The SQL filter folds
// with the same function, so every listed poem that matched the filter also
// gets its matches reported here.
func annotate(poem model.Poem, requesterID, term string, withUsername bool) model.AnnotatedPoem {
	out := model.AnnotatedPoem{
		Poem:    poem,
		IsOwner: requesterID != "" && poem.UserID == requesterID,
	}
	if term == "" {
		return out
	}

	needle := textfold.Fold(term)
	matches := &model.SearchMatches{
		TitleMatch:      strings.Contains(textfold.Fold(poem.Title), needle),
		MatchingStanzas: []model.MatchingStanza{},
	}
	if withUsername {
		hit := strings.Contains(textfold.Fold(poem.Author.Username), needle)
		matches.UsernameMatch = &hit
	}

	for _, s := range poem.Stanzas {
		snippet, idx, ok := findSnippet(s.Body, term)
		if !ok {
			continue
		}
		matches.MatchingStanzas = append(matches.MatchingStanzas, model.MatchingStanza{
			ID:         s.ID,
			Position:   s.Position,
			Snippet:    snippet,
			MatchIndex: idx,
		})
	}

	out.SearchMatches = matches
	return out
}

// findSnippet locates the first case-insensitive occurrence of term in body
// and returns the surrounding window plus the match offset inside it.
//
// Example, term "tide" > 50 characters into the body:
//
//	"...the morning when the tide rises slowly over the..."
//	                         ^ matchIndex (counted after the leading "...")
func findSnippet(body, term string) (snippet string, matchIndex int, ok bool) {
	if body == "" || term == "" {
		return "", 0, false
	}

	loweredBody := textfold.Fold(body)
	byteIdx := strings.Index(loweredBody, textfold.Fold(term))
	if byteIdx < 0 {
		return "", 0, false
	}

	runes := []rune(body)
	match := utf8.RuneCountInString(loweredBody[:byteIdx])
	termLen := utf8.RuneCountInString(term)

	start := max(0, match-snippetContext)
	end := min(len(runes), match+termLen+snippetContext)

	var b strings.Builder
	matchIndex = match - start
	if start > 0 {
		b.WriteString(ellipsis)
		matchIndex += len(ellipsis)
	}
	b.WriteString(string(runes[start:end]))
	if end < len(runes) {
		b.WriteString(ellipsis)
	}
	return b.String(), matchIndex, true
}
