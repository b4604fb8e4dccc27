package jobs

import (
	"context"
	"sort"
	"time"

	"filmstrip/internal/aggregate"
	"filmstrip/internal/indexers/torrentino"
	"filmstrip/internal/indexers/yts"
	"filmstrip/internal/models"
	"filmstrip/internal/providers/tmdb"
	"filmstrip/internal/store"
)

// Job names. Schedules and healthcheck URLs in config are keyed by these.
const (
	JobSaveNewMovies   = "save-new-movies"
	JobUpdateMovieInfo = "update-movie-info"
	JobUpdateTorrents  = "update-torrents"
)

// MovieStore is the slice of the persistence layer the jobs use.
type MovieStore interface {
	FindOne(ctx context.Context, f store.Filter) (*models.MovieRecord, error)
	FindMany(ctx context.Context, f store.Filter, sort store.Sort, skip, limit int) ([]*models.MovieRecord, error)
	InsertOne(ctx context.Context, rec *models.MovieRecord) error
	UpdateOne(ctx context.Context, id string, u store.Update) error
}

// MetadataSource reconciles provider metadata for one movie.
type MetadataSource interface {
	FindTMDBMatch(ctx context.Context, q aggregate.Query) (*tmdb.Match, error)
	GetMovieInfo(ctx context.Context, q aggregate.Query) (*models.MovieInfo, error)
	GetUpdates(ctx context.Context, q aggregate.Query, popularityOnly bool) (*aggregate.Updates, error)
}

// EnglishIndexer is the primary English release source.
type EnglishIndexer interface {
	GetLatestReleases(ctx context.Context) ([]yts.Release, error)
	GetReleaseDetails(ctx context.Context, ytsID int) (*yts.Release, error)
}

// TorrentSearch is the secondary English torrent source and title miner.
type TorrentSearch interface {
	GetTorrentsForMovie(ctx context.Context, title string) ([]models.Torrent, error)
	GetTopMovies(ctx context.Context) ([]models.MovieCandidate, error)
}

// RussianIndexer discovers Russian releases and their torrents.
type RussianIndexer interface {
	GetLatestReleases(ctx context.Context, page int) ([]models.MovieCandidate, error)
	FindSlug(ctx context.Context, title string, kpID int) (string, error)
	GetReleaseDetails(ctx context.Context, slug string) (*torrentino.Release, error)
}

// pause spaces consecutive item fetches so the sources see a slow, steady
// crawl instead of a burst.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func bySeedsDesc(list []models.Torrent) []models.Torrent {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Seeds > list[j].Seeds })
	return list
}
