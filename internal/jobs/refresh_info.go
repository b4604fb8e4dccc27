package jobs

import (
	"context"
	"fmt"
	"time"

	"filmstrip/internal/aggregate"
	"filmstrip/internal/logger"
	"filmstrip/internal/models"
	"filmstrip/internal/store"
)

const (
	// newMovieWindow separates the fresh part of the library, refreshed
	// daily, from the long tail refreshed every few days.
	newMovieWindow = 30 * 24 * time.Hour
	newInfoMaxAge  = 24 * time.Hour
	oldInfoMaxAge  = 4 * 24 * time.Hour

	// stableReleaseAge is how long after release the editorial metadata is
	// considered settled; beyond it only the popularity rank is re-fetched.
	stableReleaseAge = 60 * 24 * time.Hour

	// popularityChartSize is the depth of the imdb popularity chart. A
	// movie holding a rank stays on the daily schedule whatever its age.
	popularityChartSize = 1000
)

// InfoRefresh re-fetches the volatile metadata (ratings, popularity) of
// stored movies. Only movies that actually have torrents are worth
// refreshing; the rest stay as discovery left them.
type InfoRefresh struct {
	store     MovieStore
	meta      MetadataSource
	itemDelay time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func NewInfoRefresh(s MovieStore, meta MetadataSource, itemDelay time.Duration, log *logger.Logger) *InfoRefresh {
	return &InfoRefresh{store: s, meta: meta, itemDelay: itemDelay, log: log, now: time.Now}
}

func (j *InfoRefresh) Job() Job {
	return Job{Name: JobUpdateMovieInfo, Schedule: "30 */2 * * *", Run: j.Run}
}

func hasTorrents() [][]store.Cond {
	return [][]store.Cond{
		{store.NotEmpty("torrents.en")},
		{store.NotEmpty("torrents.ru")},
	}
}

// eligible collects the records due for a refresh: fresh movies on the daily
// schedule, old movies on the slow one, plus anything still on the
// popularity chart regardless of age.
func (j *InfoRefresh) eligible(ctx context.Context) ([]*models.MovieRecord, error) {
	now := j.now()
	monthAgo := now.Add(-newMovieWindow)

	filters := []store.Filter{
		{
			Conds: []store.Cond{
				store.Gt("createdAt", monthAgo),
				store.Lt("infoUpdatedAt", now.Add(-newInfoMaxAge)),
			},
			Or: hasTorrents(),
		},
		{
			Conds: []store.Cond{
				store.Lt("createdAt", monthAgo),
				store.Lt("infoUpdatedAt", now.Add(-oldInfoMaxAge)),
			},
			Or: hasTorrents(),
		},
		{
			Conds: []store.Cond{
				store.Gt("info.imdbPopularity", 0),
				store.Lt("info.imdbPopularity", popularityChartSize),
				store.Lt("infoUpdatedAt", now.Add(-newInfoMaxAge)),
			},
			Or: hasTorrents(),
		},
	}

	seen := make(map[string]bool)
	var records []*models.MovieRecord
	for _, f := range filters {
		batch, err := j.store.FindMany(ctx, f, store.Sort{Field: "infoUpdatedAt"}, 0, 0)
		if err != nil {
			return nil, err
		}
		for _, rec := range batch {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			records = append(records, rec)
		}
	}
	return records, nil
}

func (j *InfoRefresh) Run(ctx context.Context) error {
	records, err := j.eligible(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect refreshable movies: %w", err)
	}
	j.log.Info("InfoRefresh", "Run", fmt.Sprintf("Refreshing %d movies", len(records)))

	for _, rec := range records {
		if err := j.refresh(ctx, rec); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			j.log.Error("InfoRefresh", "Run",
				fmt.Sprintf("Failed to refresh %q: %v", rec.Slug, err))
		}
		if err := pause(ctx, j.itemDelay); err != nil {
			return err
		}
	}
	return nil
}

func (j *InfoRefresh) refresh(ctx context.Context, rec *models.MovieRecord) error {
	updates, err := j.meta.GetUpdates(ctx, queryFor(rec.Info), j.popularityOnly(rec.Info))
	if err != nil {
		return err
	}

	info := rec.Info
	updates.ApplyTo(&info)

	now := j.now()
	return j.store.UpdateOne(ctx, rec.ID, store.Update{Info: &info, InfoUpdatedAt: &now})
}

// popularityOnly is true for movies released long enough ago that their
// ratings have settled; only the chart rank still moves.
func (j *InfoRefresh) popularityOnly(info models.MovieInfo) bool {
	released, err := time.Parse("2006-01-02", info.ReleaseDate)
	if err != nil {
		return false
	}
	return j.now().Sub(released) > stableReleaseAge
}

func queryFor(info models.MovieInfo) aggregate.Query {
	title := info.Title.Raw(models.LangEN)
	if title == "" {
		title = info.Title.Raw(models.LangRU)
	}
	return aggregate.Query{
		Title:  title,
		Year:   info.Year,
		IMDBID: info.IMDBID,
		TMDBID: info.TMDBID,
		KPID:   info.KPID,
	}
}
