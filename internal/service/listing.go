package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/poit/internal/apperror"
	"github.com/sakif/poit/internal/model"
	"github.com/sakif/poit/internal/repository"
	"golang.org/x/sync/errgroup"
)

// Listing limits. Limits are coerced into range, never rejected.
const (
	DefaultListLimit = 10
	MaxListLimit     = 50
)

// AudienceKind names the pool of poems a listing draws from.
type AudienceKind int

const (
	AudienceAll AudienceKind = iota
	AudienceOwn
	AudienceFeed
	AudienceUser
)

func (k AudienceKind) String() string {
	switch k {
	case AudienceAll:
		return "all"
	case AudienceOwn:
		return "own"
	case AudienceFeed:
		return "feed"
	case AudienceUser:
		return "user"
	default:
		return "AudienceKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Audience is a tagged value: the kind plus the one user id that kind needs.
// Build it with All, Own, Feed or User.
type Audience struct {
	kind   AudienceKind
	userID string
}

// All lists every poem.
func All() Audience { return Audience{kind: AudienceAll} }

// Own lists the poems written by userID. An empty userID means the caller is
// anonymous and the listing is refused.
func Own(userID string) Audience { return Audience{kind: AudienceOwn, userID: userID} }

// Feed lists poems by requesterID and everyone requesterID follows.
func Feed(requesterID string) Audience { return Audience{kind: AudienceFeed, userID: requesterID} }

// User lists the poems written by targetUserID.
func User(targetUserID string) Audience { return Audience{kind: AudienceUser, userID: targetUserID} }

func (a Audience) Kind() AudienceKind { return a.kind }
func (a Audience) UserID() string     { return a.userID }

// searchesUsername reports whether the author's username takes part in search.
// Only the mixed-author views do; in Own and User every poem has one author.
func (a Audience) searchesUsername() bool {
	return a.kind == AudienceAll || a.kind == AudienceFeed
}

// ListRequest is one listing call. RequesterID is "" for anonymous callers.
// Cursor is the id of the last poem of the previous page, or "".
type ListRequest struct {
	Audience    Audience
	RequesterID string
	Cursor      string
	Limit       int
	Search      string
}

// ListResult is one page. NextCursor is nil on the last page.
// TotalCount is the size of the whole filtered set, not of this page.
type ListResult struct {
	Poems      []model.AnnotatedPoem `json:"poems"`
	NextCursor *string               `json:"nextCursor"`
	TotalCount int                   `json:"totalCount"`
}

// PoemListingService is the single listing engine behind every poem listing
// endpoint. The audience is the only axis along which the four views differ.
type PoemListingService struct {
	poems   repository.PoemRepository
	users   repository.UserRepository
	follows repository.FollowRepository
	logger  *slog.Logger
}

func NewPoemListingService(
	poems repository.PoemRepository,
	users repository.UserRepository,
	follows repository.FollowRepository,
	logger *slog.Logger,
) *PoemListingService {
	return &PoemListingService{
		poems:   poems,
		users:   users,
		follows: follows,
		logger:  logger,
	}
}

// ParseLimit coerces a raw query-string limit. Absent or non-numeric input
// gives DefaultListLimit; numbers are clamped to [1, MaxListLimit].
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultListLimit
	}
	return clampLimit(n)
}

func clampLimit(n int) int {
	return min(max(n, 1), MaxListLimit)
}

// List returns one annotated page of poems.
//
// THE PIPELINE:
//
//  1. Resolve the audience into an immutable repository.PoemFilter.
//  2. Resolve the cursor into a sort key (unknown cursor → NotFound).
//  3. Run the page query (limit+1 rows) and the count query concurrently.
//  4. Trim the extra row; it only tells us whether another page exists.
//  5. Annotate each poem for the requester and the search term.
//
// Either query failing fails the whole call. There are no partial pages.
func (s *PoemListingService) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	limit := clampLimit(req.Limit)
	term := strings.TrimSpace(req.Search)

	filter, err := s.buildFilter(ctx, req.Audience, term)
	if err != nil {
		return nil, err
	}

	page := repository.PageOptions{Limit: limit + 1}
	if cursor := strings.TrimSpace(req.Cursor); cursor != "" {
		key, err := s.poems.PageKeyOf(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("resolving cursor: %w", err)
		}
		page.After = key
	}

	// WHY errgroup?
	// The count and the page are independent reads over the same filter.
	// errgroup.WithContext cancels the sibling as soon as one fails and
	// Wait returns that first error.
	var (
		poems []model.Poem
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		poems, err = s.poems.ListPoems(gctx, filter, page)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.poems.CountPoems(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to list poems",
			slog.String("audience", req.Audience.Kind().String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing poems: %w", err)
	}

	result := &ListResult{
		Poems:      make([]model.AnnotatedPoem, 0, min(len(poems), limit)),
		TotalCount: total,
	}
	if len(poems) > limit {
		poems = poems[:limit]
		next := poems[limit-1].ID
		result.NextCursor = &next
	}

	withUsername := req.Audience.searchesUsername()
	for _, p := range poems {
		result.Poems = append(result.Poems, annotate(p, req.RequesterID, term, withUsername))
	}

	s.logger.Debug("poems listed",
		slog.String("audience", req.Audience.Kind().String()),
		slog.Int("returned", len(result.Poems)),
		slog.Int("total", total),
		slog.Bool("hasMore", result.NextCursor != nil),
	)
	return result, nil
}

// buildFilter maps an audience to the predicate the repository runs.
func (s *PoemListingService) buildFilter(ctx context.Context, a Audience, term string) (repository.PoemFilter, error) {
	filter := repository.PoemFilter{
		Search:         term,
		SearchUsername: term != "" && a.searchesUsername(),
	}

	switch a.kind {
	case AudienceAll:
		// no owner restriction

	case AudienceOwn:
		if a.userID == "" {
			return filter, apperror.Unauthorized("sign in to list your poems")
		}
		filter.OwnerIDs = []string{a.userID}

	case AudienceFeed:
		if a.userID == "" {
			return filter, apperror.Unauthorized("sign in to see your feed")
		}
		following, err := s.follows.FollowingIDs(ctx, a.userID)
		if err != nil {
			return filter, fmt.Errorf("loading follows: %w", err)
		}
		filter.OwnerIDs = append(following, a.userID)

	case AudienceUser:
		if strings.TrimSpace(a.userID) == "" {
			return filter, apperror.ValidationFailed("userId", "user ID is required")
		}
		if _, err := s.users.GetUserByID(ctx, a.userID); err != nil {
			return filter, err
		}
		filter.OwnerIDs = []string{a.userID}

	default:
		return filter, fmt.Errorf("unknown audience %s", a.kind)
	}

	return filter, nil
}
