package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmstrip/internal/aggregate"
	"filmstrip/internal/indexers/torrentino"
	"filmstrip/internal/indexers/yts"
	"filmstrip/internal/logger"
	"filmstrip/internal/models"
)

func storedMovie(id string, createdAgo, infoUpdatedAgo time.Duration, withTorrents bool) *models.MovieRecord {
	now := time.Now()
	rec := &models.MovieRecord{
		ID:            id,
		Slug:          id,
		Info:          *arrivalInfo(),
		CreatedAt:     now.Add(-createdAgo),
		InfoUpdatedAt: now.Add(-infoUpdatedAgo),
	}
	if withTorrents {
		rec.Torrents.Set(models.LangEN, []models.Torrent{{
			Source: models.SourceYTS, Quality: models.Quality720p, Size: 2 * gib, Seeds: 10,
		}})
	}
	return rec
}

func TestInfoRefreshEligibility(t *testing.T) {
	const day = 24 * time.Hour

	st := newFakeStore()
	st.records = []*models.MovieRecord{
		storedMovie("fresh-stale", 2*day, 2*day, true),       // new movie past the daily deadline
		storedMovie("fresh-current", 2*day, time.Hour, true), // refreshed recently
		storedMovie("old-stale", 90*day, 5*day, true),        // old movie past the slow deadline
		storedMovie("old-current", 90*day, 2*day, true),      // old movie within the slow deadline
		storedMovie("old-charting", 90*day, 2*day, true),     // old but still on the popularity chart
		storedMovie("no-torrents", 2*day, 2*day, false),      // nothing to serve, not worth refreshing
	}
	st.records[4].Info.IMDBPopularity = 42

	meta := &fakeMeta{}
	job := NewInfoRefresh(st, meta, 0, logger.New())
	require.NoError(t, job.Run(context.Background()))

	assert.ElementsMatch(t, []string{"fresh-stale", "old-stale", "old-charting"}, updatedIDs(st))
}

func TestInfoRefreshPopularityOnlyForSettledReleases(t *testing.T) {
	st := newFakeStore()
	settled := storedMovie("settled", 2*24*time.Hour, 2*24*time.Hour, true)
	settled.Info.ReleaseDate = "2016-11-10"
	fresh := storedMovie("fresh", 2*24*time.Hour, 2*24*time.Hour, true)
	fresh.Info.ReleaseDate = time.Now().Add(-10 * 24 * time.Hour).Format("2006-01-02")
	st.records = []*models.MovieRecord{settled, fresh}

	meta := &fakeMeta{}
	job := NewInfoRefresh(st, meta, 0, logger.New())
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, meta.updateCalls, 2)
	assert.True(t, meta.updateCalls[0], "an old release only needs its chart rank")
	assert.False(t, meta.updateCalls[1], "a recent release gets the full refresh")
}

func TestInfoRefreshAppliesUpdates(t *testing.T) {
	st := newFakeStore()
	rec := storedMovie("movie", 2*24*time.Hour, 2*24*time.Hour, true)
	rec.Info.ReleaseDate = time.Now().Add(-10 * 24 * time.Hour).Format("2006-01-02")
	rec.Info.IMDBRating = 7.0
	before := rec.InfoUpdatedAt
	st.records = []*models.MovieRecord{rec}

	meta := &fakeMeta{updates: &aggregate.Updates{IMDBRating: 7.9, IMDBRatingVoteCount: 700000}}
	job := NewInfoRefresh(st, meta, 0, logger.New())
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 7.9, rec.Info.IMDBRating)
	assert.Equal(t, 700000, rec.Info.IMDBRatingVoteCount)
	assert.True(t, rec.InfoUpdatedAt.After(before))
	assert.Equal(t, "Arrival", rec.Info.Title.Raw(models.LangEN), "static fields survive the refresh")
}

func TestTorrentRefreshRebuildsLists(t *testing.T) {
	st := newFakeStore()
	rec := storedMovie("movie", 2*24*time.Hour, time.Hour, true)
	rec.Info.YTSID = 5496
	rec.Info.TorrentinoSlug = "920265-pribytie"
	st.records = []*models.MovieRecord{rec}

	english := &fakeEnglish{details: map[int]*yts.Release{5496: {
		YTSID: 5496,
		Torrents: []models.Torrent{{
			Source: models.SourceYTS, Quality: models.Quality1080p, Size: 4 * gib, Seeds: 250,
		}},
	}}}
	search := &fakeSearch{torrents: map[string][]models.Torrent{key("Arrival"): {{
		Source: models.SourceTPB, Quality: models.Quality720p, Size: 3 * gib, Seeds: 400,
	}}}}
	russian := &fakeRussian{details: map[string]*torrentino.Release{"920265-pribytie": {
		Torrents: []models.Torrent{{
			Source: models.SourceTorrentino, Quality: models.Quality1080p, Size: 5 * gib, Seeds: 80,
		}},
	}}}

	job := NewTorrentRefresh(st, english, search, russian, 0, logger.New())
	require.NoError(t, job.Run(context.Background()))

	en := rec.Torrents.Raw(models.LangEN)
	require.Len(t, en, 2)
	assert.Equal(t, models.SourceTPB, en[0].Source)
	assert.Equal(t, models.SourceYTS, en[1].Source)
	require.Len(t, rec.Torrents.Raw(models.LangRU), 1)
	assert.False(t, rec.TorrentsUpdatedAt.IsZero())
}

func TestTorrentRefreshClearsPulledRelease(t *testing.T) {
	st := newFakeStore()
	rec := storedMovie("movie", 2*24*time.Hour, time.Hour, true)
	rec.Info.YTSID = 404
	rec.Info.Title = models.MultiLang[string]{} // no title, no search fallback
	st.records = []*models.MovieRecord{rec}

	job := NewTorrentRefresh(st, &fakeEnglish{details: map[int]*yts.Release{}}, &fakeSearch{}, &fakeRussian{}, 0, logger.New())
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, rec.Torrents.Raw(models.LangEN), "a pulled release clears its torrents")
}

func TestTorrentRefreshSkipsOldMovies(t *testing.T) {
	st := newFakeStore()
	st.records = []*models.MovieRecord{storedMovie("old", 90*24*time.Hour, time.Hour, true)}

	job := NewTorrentRefresh(st, &fakeEnglish{}, &fakeSearch{}, &fakeRussian{}, 0, logger.New())
	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, st.updates, "torrents of settled movies are left alone")
}

func TestTorrentRefreshDiscoversRussianSlug(t *testing.T) {
	st := newFakeStore()
	rec := storedMovie("movie", 2*24*time.Hour, time.Hour, true)
	st.records = []*models.MovieRecord{rec}

	russian := &fakeRussian{
		slugs: map[string]string{"Прибытие": "920265-pribytie"},
		details: map[string]*torrentino.Release{"920265-pribytie": {
			Torrents: []models.Torrent{{Source: models.SourceTorrentino, Quality: models.Quality720p, Size: 2 * gib, Seeds: 30}},
		}},
	}
	job := NewTorrentRefresh(st, &fakeEnglish{}, &fakeSearch{}, russian, 0, logger.New())
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, "920265-pribytie", rec.Info.TorrentinoSlug)
	assert.Len(t, rec.Torrents.Raw(models.LangRU), 1)
}

func updatedIDs(st *fakeStore) []string {
	var ids []string
	for id := range st.updates {
		ids = append(ids, id)
	}
	return ids
}
