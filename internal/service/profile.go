package service

import (
	"context"

	"github.com/AlexFangSW/typephoon/internal/model"
	"github.com/AlexFangSW/typephoon/internal/store"
)

// ProfileService implements the profile statistics/history read surface.
// Guests have no persisted rows, so every method short-circuits to a zero
// value for them rather than querying (spec §4.7, grounded on
// original_source/services/profile.py).
type ProfileService struct {
	results *store.GameResultStore
}

// NewProfileService wires the collaborator a ProfileService needs.
func NewProfileService(results *store.GameResultStore) *ProfileService {
	return &ProfileService{results: results}
}

// Statistics returns the aggregate WPM/accuracy stats for a registered
// user, or the zero value for a guest.
func (s *ProfileService) Statistics(ctx context.Context, userID string, userType model.UserType) (store.ProfileStats, error) {
	if userType == model.UserTypeGuest {
		return store.ProfileStats{}, nil
	}
	return s.results.Stats(ctx, userID)
}

// History is one page of a registered user's finished games, or the zero
// value for a guest.
type History struct {
	Total       int
	HasPrevPage bool
	HasNextPage bool
	Games       []model.GameResult
}

// History returns page `page` (1-based) of userID's finished games, size
// entries per page, newest first (spec §4.7).
func (s *ProfileService) History(ctx context.Context, userID string, userType model.UserType, page, size int) (History, error) {
	if userType == model.UserTypeGuest {
		return History{}, nil
	}

	games, total, err := s.results.History(ctx, userID, page, size)
	if err != nil {
		return History{}, err
	}
	hasPrev, hasNext := paginationFlags(page, size, total)
	return History{
		Total:       total,
		HasPrevPage: hasPrev,
		HasNextPage: hasNext,
		Games:       games,
	}, nil
}

// Graph returns every one of a registered user's finished games, oldest
// first, for charting a WPM/accuracy trend (spec §8 "profile graph"). Empty
// for a guest.
func (s *ProfileService) Graph(ctx context.Context, userID string, userType model.UserType) ([]model.GameResult, error) {
	if userType == model.UserTypeGuest {
		return nil, nil
	}
	return s.results.AllByUser(ctx, userID)
}

// paginationFlags reports whether a previous/next page exists for a
// 1-based page of the given size against total results.
func paginationFlags(page, size, total int) (hasPrev, hasNext bool) {
	return page > 1, total > page*size
}
