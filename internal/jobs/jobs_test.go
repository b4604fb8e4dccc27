package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filmstrip/internal/aggregate"
	"filmstrip/internal/fetch"
	"filmstrip/internal/indexers/torrentino"
	"filmstrip/internal/indexers/yts"
	"filmstrip/internal/models"
	"filmstrip/internal/providers/tmdb"
	"filmstrip/internal/store"
)

// fakeStore keeps records in memory and evaluates the filter fields the jobs
// actually use.
type fakeStore struct {
	records []*models.MovieRecord
	updates map[string][]store.Update
}

func newFakeStore() *fakeStore {
	return &fakeStore{updates: make(map[string][]store.Update)}
}

func (s *fakeStore) FindOne(ctx context.Context, f store.Filter) (*models.MovieRecord, error) {
	for _, rec := range s.records {
		if matchFilter(rec, f) {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindMany(ctx context.Context, f store.Filter, _ store.Sort, _, _ int) ([]*models.MovieRecord, error) {
	var out []*models.MovieRecord
	for _, rec := range s.records {
		if matchFilter(rec, f) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertOne(ctx context.Context, rec *models.MovieRecord) error {
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("id-%d", len(s.records)+1)
	}
	rec.CreatedAt = time.Now()
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeStore) UpdateOne(ctx context.Context, id string, u store.Update) error {
	for _, rec := range s.records {
		if rec.ID != id {
			continue
		}
		if u.Info != nil {
			rec.Info = *u.Info
		}
		if u.Torrents != nil {
			rec.Torrents = *u.Torrents
		}
		if u.InfoUpdatedAt != nil {
			rec.InfoUpdatedAt = *u.InfoUpdatedAt
		}
		if u.TorrentsUpdatedAt != nil {
			rec.TorrentsUpdatedAt = *u.TorrentsUpdatedAt
		}
		s.updates[id] = append(s.updates[id], u)
		return nil
	}
	return fmt.Errorf("movie %s not found", id)
}

func matchFilter(rec *models.MovieRecord, f store.Filter) bool {
	for _, c := range f.Conds {
		if !matchCond(rec, c) {
			return false
		}
	}
	if len(f.Or) == 0 {
		return true
	}
	for _, group := range f.Or {
		all := true
		for _, c := range group {
			if !matchCond(rec, c) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func matchCond(rec *models.MovieRecord, c store.Cond) bool {
	switch c.Field {
	case "info.title.en":
		return c.Op == store.OpEq && rec.Info.Title.Raw(models.LangEN) == c.Value.(string)
	case "info.title.ru":
		return c.Op == store.OpEq && rec.Info.Title.Raw(models.LangRU) == c.Value.(string)
	case "info.year":
		return c.Op == store.OpEq && rec.Info.Year == c.Value.(int)
	case "info.imdbId":
		return c.Op == store.OpEq && rec.Info.IMDBID == c.Value.(string)
	case "info.tmdbId":
		return c.Op == store.OpEq && rec.Info.TMDBID == c.Value.(int)
	case "info.kpId":
		return c.Op == store.OpEq && rec.Info.KPID == c.Value.(int)
	case "info.imdbPopularity":
		return compareInt(rec.Info.IMDBPopularity, c)
	case "createdAt":
		return compareTime(rec.CreatedAt, c)
	case "infoUpdatedAt":
		return compareTime(rec.InfoUpdatedAt, c)
	case "torrents.en":
		return c.Op == store.OpNotEmpty && len(rec.Torrents.Raw(models.LangEN)) > 0
	case "torrents.ru":
		return c.Op == store.OpNotEmpty && len(rec.Torrents.Raw(models.LangRU)) > 0
	}
	panic("unhandled filter field " + c.Field)
}

func compareInt(v int, c store.Cond) bool {
	switch c.Op {
	case store.OpGt:
		return v > c.Value.(int)
	case store.OpLt:
		return v < c.Value.(int)
	}
	return v == c.Value.(int)
}

func compareTime(v time.Time, c store.Cond) bool {
	switch c.Op {
	case store.OpGt:
		return v.After(c.Value.(time.Time))
	case store.OpLt:
		return v.Before(c.Value.(time.Time))
	}
	return v.Equal(c.Value.(time.Time))
}

// fakeMeta serves canned metadata keyed by lowercased title and by known
// provider ids.
type fakeMeta struct {
	matches map[string]*tmdb.Match
	infos   map[string]*models.MovieInfo
	updates *aggregate.Updates
	failOn  string

	infoCalls   []aggregate.Query
	updateCalls []bool
}

func (m *fakeMeta) FindTMDBMatch(ctx context.Context, q aggregate.Query) (*tmdb.Match, error) {
	return m.matches[key(q.Title)], nil
}

func (m *fakeMeta) GetMovieInfo(ctx context.Context, q aggregate.Query) (*models.MovieInfo, error) {
	m.infoCalls = append(m.infoCalls, q)
	if m.failOn != "" && key(q.Title) == key(m.failOn) {
		return nil, errors.New("provider exploded")
	}
	info, ok := m.infos[key(q.Title)]
	if !ok {
		return nil, nil
	}
	copied := *info
	return &copied, nil
}

func (m *fakeMeta) GetUpdates(ctx context.Context, q aggregate.Query, popularityOnly bool) (*aggregate.Updates, error) {
	m.updateCalls = append(m.updateCalls, popularityOnly)
	if m.updates != nil {
		u := *m.updates
		u.PopularityOnly = popularityOnly
		return &u, nil
	}
	return &aggregate.Updates{PopularityOnly: popularityOnly}, nil
}

func key(title string) string {
	return models.Slugify(title, 0)
}

type fakeEnglish struct {
	releases []yts.Release
	details  map[int]*yts.Release
	err      error
}

func (f *fakeEnglish) GetLatestReleases(ctx context.Context) ([]yts.Release, error) {
	return f.releases, f.err
}

func (f *fakeEnglish) GetReleaseDetails(ctx context.Context, ytsID int) (*yts.Release, error) {
	if f.err != nil {
		return nil, f.err
	}
	release, ok := f.details[ytsID]
	if !ok {
		return nil, fmt.Errorf("no release %d: %w", ytsID, fetch.ErrNotFound)
	}
	return release, nil
}

type fakeSearch struct {
	torrents map[string][]models.Torrent
	mined    []models.MovieCandidate
}

func (f *fakeSearch) GetTorrentsForMovie(ctx context.Context, title string) ([]models.Torrent, error) {
	return f.torrents[key(title)], nil
}

func (f *fakeSearch) GetTopMovies(ctx context.Context) ([]models.MovieCandidate, error) {
	return f.mined, nil
}

type fakeRussian struct {
	listing []models.MovieCandidate
	slugs   map[string]string // ru title -> slug
	details map[string]*torrentino.Release
}

func (f *fakeRussian) GetLatestReleases(ctx context.Context, page int) ([]models.MovieCandidate, error) {
	return f.listing, nil
}

func (f *fakeRussian) FindSlug(ctx context.Context, title string, kpID int) (string, error) {
	return f.slugs[title], nil
}

func (f *fakeRussian) GetReleaseDetails(ctx context.Context, slug string) (*torrentino.Release, error) {
	release, ok := f.details[slug]
	if !ok {
		return nil, fmt.Errorf("no release for %q", slug)
	}
	return release, nil
}
