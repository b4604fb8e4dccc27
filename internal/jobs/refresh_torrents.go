package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filmstrip/internal/fetch"
	"filmstrip/internal/logger"
	"filmstrip/internal/models"
	"filmstrip/internal/store"
)

// TorrentRefresh re-fetches the torrent lists of recently added movies.
// Torrents churn fast in the weeks after a release and then freeze, so only
// the fresh part of the library is walked.
type TorrentRefresh struct {
	store     MovieStore
	english   EnglishIndexer
	search    TorrentSearch
	russian   RussianIndexer
	itemDelay time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func NewTorrentRefresh(s MovieStore, english EnglishIndexer, search TorrentSearch,
	russian RussianIndexer, itemDelay time.Duration, log *logger.Logger) *TorrentRefresh {
	return &TorrentRefresh{
		store:     s,
		english:   english,
		search:    search,
		russian:   russian,
		itemDelay: itemDelay,
		log:       log,
		now:       time.Now,
	}
}

func (j *TorrentRefresh) Job() Job {
	return Job{Name: JobUpdateTorrents, Schedule: "15 */4 * * *", Run: j.Run}
}

func (j *TorrentRefresh) Run(ctx context.Context) error {
	records, err := j.store.FindMany(ctx, store.Filter{
		Conds: []store.Cond{store.Gt("createdAt", j.now().Add(-newMovieWindow))},
	}, store.Sort{Field: "torrentsUpdatedAt"}, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to collect refreshable movies: %w", err)
	}
	j.log.Info("TorrentRefresh", "Run", fmt.Sprintf("Refreshing torrents for %d movies", len(records)))

	for _, rec := range records {
		if err := j.refresh(ctx, rec); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			j.log.Error("TorrentRefresh", "Run",
				fmt.Sprintf("Failed to refresh torrents for %q: %v", rec.Slug, err))
		}
		if err := pause(ctx, j.itemDelay); err != nil {
			return err
		}
	}
	return nil
}

// refresh rebuilds each language's torrent list from its sources. A source
// that fails leaves that language's previous list in place; a source that
// answers with nothing clears it.
func (j *TorrentRefresh) refresh(ctx context.Context, rec *models.MovieRecord) error {
	torrents := rec.Torrents
	info := rec.Info
	infoChanged := false

	if en, ok := j.englishTorrents(ctx, info); ok {
		torrents.Set(models.LangEN, en)
	}

	if info.TorrentinoSlug == "" {
		// A movie discovered before its russian release may be findable now.
		if ruTitle := info.Title.Raw(models.LangRU); ruTitle != "" && info.KPID != 0 {
			slug, err := j.russian.FindSlug(ctx, ruTitle, info.KPID)
			if err == nil && slug != "" {
				info.TorrentinoSlug = slug
				infoChanged = true
			}
		}
	}
	if info.TorrentinoSlug != "" {
		release, err := j.russian.GetReleaseDetails(ctx, info.TorrentinoSlug)
		if err != nil {
			j.log.Warning("TorrentRefresh", "refresh",
				fmt.Sprintf("Failed to get russian release for %q: %v", rec.Slug, err))
		} else {
			torrents.Set(models.LangRU, release.Torrents)
		}
	}

	now := j.now()
	update := store.Update{Torrents: &torrents, TorrentsUpdatedAt: &now}
	if infoChanged {
		update.Info = &info
	}
	return j.store.UpdateOne(ctx, rec.ID, update)
}

// englishTorrents merges the listing source's torrents for the movie with
// the search source's. The second return is false when nothing could be
// fetched at all, so the caller keeps the old list.
func (j *TorrentRefresh) englishTorrents(ctx context.Context, info models.MovieInfo) ([]models.Torrent, bool) {
	var list []models.Torrent
	fetched := false

	if info.YTSID != 0 {
		release, err := j.english.GetReleaseDetails(ctx, info.YTSID)
		switch {
		case errors.Is(err, fetch.ErrNotFound):
			fetched = true // the release was pulled; that clears its torrents
		case err != nil:
			j.log.Warning("TorrentRefresh", "englishTorrents",
				fmt.Sprintf("Failed to get release %d: %v", info.YTSID, err))
		default:
			list = append(list, release.Torrents...)
			fetched = true
		}
	}

	if title := info.Title.Raw(models.LangEN); title != "" {
		found, err := j.search.GetTorrentsForMovie(ctx, title)
		if err != nil {
			j.log.Warning("TorrentRefresh", "englishTorrents",
				fmt.Sprintf("Torrent search failed for %q: %v", title, err))
		} else {
			list = append(list, found...)
			fetched = true
		}
	}

	return bySeedsDesc(list), fetched
}
