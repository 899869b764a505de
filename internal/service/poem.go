// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, so tests can swap
// in in-memory fakes and the HTTP layer never sees SQL.
//
// THE DEPENDENCY CHAIN:
//
//	main.go creates:  DB → Repository → Service → Handler
//	At runtime:       Handler calls Service calls Repository calls DB
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/poit/internal/apperror"
	"github.com/sakif/poit/internal/model"
	"github.com/sakif/poit/internal/repository"
)

// Validation constants. Lengths are counted in characters.
const (
	MaxPoemTitleLength  = 200
	MaxStanzaBodyLength = 10000
)

// PoemService owns the poem lifecycle: creating, renaming and deleting poems
// and editing their stanzas. Every mutation is restricted to the poem's owner.
type PoemService struct {
	repo   repository.PoemRepository
	logger *slog.Logger
}

func NewPoemService(repo repository.PoemRepository, logger *slog.Logger) *PoemService {
	return &PoemService{
		repo:   repo,
		logger: logger,
	}
}

// Create starts an empty poem for requesterID. A blank title becomes
// model.DefaultPoemTitle.
func (s *PoemService) Create(ctx context.Context, requesterID, title string) (*model.Poem, error) {
	if requesterID == "" {
		return nil, apperror.Unauthorized("sign in to write poems")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = model.DefaultPoemTitle
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	poem := &model.Poem{UserID: requesterID, Title: title}
	if err := s.repo.CreatePoem(ctx, poem); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// The token named a user that no longer exists.
			return nil, apperror.Unauthorized("unknown user")
		}
		s.logger.Error("failed to create poem",
			slog.String("userID", requesterID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating poem: %w", err)
	}

	s.logger.Info("poem created",
		slog.String("id", poem.ID),
		slog.String("userID", requesterID),
	)

	// Re-read so the author block is filled in.
	return s.repo.GetPoem(ctx, poem.ID)
}

// Get returns a poem for anyone; isOwner tells the requester whether it is theirs.
func (s *PoemService) Get(ctx context.Context, requesterID, poemID string) (*model.AnnotatedPoem, error) {
	poemID = strings.TrimSpace(poemID)
	if poemID == "" {
		return nil, apperror.ValidationFailed("id", "poem ID is required")
	}

	poem, err := s.repo.GetPoem(ctx, poemID)
	if err != nil {
		return nil, err
	}
	annotated := annotate(*poem, requesterID, "", false)
	return &annotated, nil
}

// Rename sets a new, non-blank title.
func (s *PoemService) Rename(ctx context.Context, requesterID, poemID, title string) (*model.Poem, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if _, err := s.ownedPoem(ctx, requesterID, poemID); err != nil {
		return nil, err
	}

	if err := s.repo.UpdatePoemTitle(ctx, poemID, title); err != nil {
		return nil, s.mutationError("rename poem", poemID, err)
	}
	s.logger.Info("poem renamed", slog.String("id", poemID))
	return s.repo.GetPoem(ctx, poemID)
}

// Delete removes a poem and, through the cascade, all of its stanzas.
func (s *PoemService) Delete(ctx context.Context, requesterID, poemID string) error {
	if _, err := s.ownedPoem(ctx, requesterID, poemID); err != nil {
		return err
	}
	if err := s.repo.DeletePoem(ctx, poemID); err != nil {
		return s.mutationError("delete poem", poemID, err)
	}
	s.logger.Info("poem deleted", slog.String("id", poemID))
	return nil
}

// AddStanza appends a stanza at the end of the poem.
func (s *PoemService) AddStanza(ctx context.Context, requesterID, poemID, body string) (*model.Stanza, error) {
	if err := validateBody(body); err != nil {
		return nil, err
	}
	if _, err := s.ownedPoem(ctx, requesterID, poemID); err != nil {
		return nil, err
	}

	stanza := &model.Stanza{PoemID: poemID, Body: body}
	if err := s.repo.AddStanza(ctx, stanza); err != nil {
		return nil, s.mutationError("add stanza", poemID, err)
	}
	s.logger.Info("stanza added",
		slog.String("poemID", poemID),
		slog.Int("position", stanza.Position),
	)
	return stanza, nil
}

// UpdateStanza replaces one stanza's body.
func (s *PoemService) UpdateStanza(ctx context.Context, requesterID, poemID, stanzaID, body string) (*model.Poem, error) {
	if err := validateBody(body); err != nil {
		return nil, err
	}
	if _, err := s.ownedPoem(ctx, requesterID, poemID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStanza(ctx, poemID, stanzaID, body); err != nil {
		return nil, s.mutationError("update stanza", poemID, err)
	}
	return s.repo.GetPoem(ctx, poemID)
}

// RemoveStanza deletes one stanza; the rest close ranks.
func (s *PoemService) RemoveStanza(ctx context.Context, requesterID, poemID, stanzaID string) (*model.Poem, error) {
	if _, err := s.ownedPoem(ctx, requesterID, poemID); err != nil {
		return nil, err
	}
	if err := s.repo.RemoveStanza(ctx, poemID, stanzaID); err != nil {
		return nil, s.mutationError("remove stanza", poemID, err)
	}
	s.logger.Info("stanza removed",
		slog.String("poemID", poemID),
		slog.String("stanzaID", stanzaID),
	)
	return s.repo.GetPoem(ctx, poemID)
}

// ReorderStanzas applies a complete new order. stanzaIDs[i] ends up at position i.
func (s *PoemService) ReorderStanzas(ctx context.Context, requesterID, poemID string, stanzaIDs []string) (*model.Poem, error) {
	if _, err := s.ownedPoem(ctx, requesterID, poemID); err != nil {
		return nil, err
	}
	if err := s.repo.ReorderStanzas(ctx, poemID, stanzaIDs); err != nil {
		return nil, s.mutationError("reorder stanzas", poemID, err)
	}
	return s.repo.GetPoem(ctx, poemID)
}

// ownedPoem loads poemID and checks that requesterID owns it.
//
// ORDER OF CHECKS:
// anonymous → Unauthorized, missing → NotFound, someone else's → Forbidden.
func (s *PoemService) ownedPoem(ctx context.Context, requesterID, poemID string) (*model.Poem, error) {
	if requesterID == "" {
		return nil, apperror.Unauthorized("sign in to edit poems")
	}
	if strings.TrimSpace(poemID) == "" {
		return nil, apperror.ValidationFailed("id", "poem ID is required")
	}

	poem, err := s.repo.GetPoem(ctx, poemID)
	if err != nil {
		return nil, err
	}
	if poem.UserID != requesterID {
		return nil, apperror.Forbidden("only the author can change this poem")
	}
	return poem, nil
}

// mutationError passes domain errors through untouched and logs the rest.
func (s *PoemService) mutationError(op, poemID string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	s.logger.Error("failed to "+op,
		slog.String("poemID", poemID),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%s: %w", op, err)
}

func validateTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxPoemTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxPoemTitleLength))
	}
	return nil
}

func validateBody(body string) error {
	if utf8.RuneCountInString(body) > MaxStanzaBodyLength {
		return apperror.ValidationFailed("body",
			fmt.Sprintf("stanza must be %d characters or less", MaxStanzaBodyLength))
	}
	return nil
}
