package jobs

import (
	"context"

	"filmstrip/internal/models"
	"filmstrip/internal/store"
)

// IdentityResolver decides whether a discovered candidate already exists in
// the library. Every identity key the candidate carries becomes its own OR
// group, so a match on any single key is a match; a title only counts
// together with the year, and only in the language the candidate was
// discovered in.
type IdentityResolver struct {
	store MovieStore
}

func NewIdentityResolver(s MovieStore) *IdentityResolver {
	return &IdentityResolver{store: s}
}

// FindExisting returns the stored record the candidate duplicates, or nil
// when the candidate is new. A candidate with no usable identity keys is
// treated as new.
func (r *IdentityResolver) FindExisting(ctx context.Context, c models.MovieCandidate, lang models.Lang) (*models.MovieRecord, error) {
	var groups [][]store.Cond

	if c.Title != "" && c.Year != 0 {
		groups = append(groups, []store.Cond{
			store.Eq("info.title."+string(lang), c.Title),
			store.Eq("info.year", c.Year),
		})
	}
	if c.IMDBID != "" {
		groups = append(groups, []store.Cond{store.Eq("info.imdbId", c.IMDBID)})
	}
	if c.TMDBID != 0 {
		groups = append(groups, []store.Cond{store.Eq("info.tmdbId", c.TMDBID)})
	}
	if c.KPID != 0 {
		groups = append(groups, []store.Cond{store.Eq("info.kpId", c.KPID)})
	}

	if len(groups) == 0 {
		return nil, nil
	}
	return r.store.FindOne(ctx, store.Filter{Or: groups})
}
