package aggregate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmstrip/internal/logger"
	"filmstrip/internal/models"
	"filmstrip/internal/providers/imdb"
	"filmstrip/internal/providers/kinopoisk"
	"filmstrip/internal/providers/tmdb"
)

type fakeTMDB struct {
	match *tmdb.Match
	en    *tmdb.Info
	ru    *tmdb.Info
}

func (f *fakeTMDB) FindMatch(ctx context.Context, title string, year int, imdbID string) (*tmdb.Match, error) {
	return f.match, nil
}

func (f *fakeTMDB) GetInfo(ctx context.Context, tmdbID int, lang models.Lang) (*tmdb.Info, error) {
	if lang == models.LangRU {
		return f.ru, nil
	}
	return f.en, nil
}

type fakeKP struct {
	id   int
	info *kinopoisk.Info
}

func (f *fakeKP) ResolveID(ctx context.Context, title string, year int) (int, error) {
	return f.id, nil
}

func (f *fakeKP) GetInfo(ctx context.Context, kpID int) (*kinopoisk.Info, error) {
	return f.info, nil
}

type fakeIMDB struct {
	rating     imdb.Rating
	popularity int
}

func (f *fakeIMDB) GetRating(ctx context.Context, imdbID string) (imdb.Rating, error) {
	return f.rating, nil
}

func (f *fakeIMDB) GetPopularity(ctx context.Context, imdbID string) (int, error) {
	return f.popularity, nil
}

func newAggregator(t *fakeTMDB, k *fakeKP, i *fakeIMDB) *Aggregator {
	return New(t, k, i, logger.New())
}

func TestGetMovieInfoAbsentWhenNoProviderHasATitle(t *testing.T) {
	agg := newAggregator(&fakeTMDB{}, &fakeKP{}, &fakeIMDB{})

	info, err := agg.GetMovieInfo(context.Background(), Query{Title: "Nothing", Year: 2016})
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestGetMovieInfoPresentWithSingleProviderTitle(t *testing.T) {
	agg := newAggregator(&fakeTMDB{}, &fakeKP{
		id:   920265,
		info: &kinopoisk.Info{KPID: 920265, Title: "Прибытие", Year: 2016},
	}, &fakeIMDB{})

	info, err := agg.GetMovieInfo(context.Background(), Query{Title: "Прибытие", Year: 2016})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Прибытие", info.Title.Raw(models.LangRU))
	assert.Equal(t, "", info.Title.Raw(models.LangEN))
	assert.Equal(t, 2016, info.Year)
}

func TestMergePrecedence(t *testing.T) {
	agg := newAggregator(
		&fakeTMDB{
			match: &tmdb.Match{TMDBID: 329865, Title: "Arrival"},
			en: &tmdb.Info{
				TMDBID:      329865,
				IMDBID:      "tt2543164",
				Title:       "Arrival",
				Synopsis:    "A linguist is recruited.",
				Genres:      []string{"Drama", "Science Fiction"},
				ReleaseDate: "2016-11-10",
				Runtime:     116,
				Rating:      7.5,
			},
			ru: &tmdb.Info{
				TMDBID:   329865,
				Title:    "Прибытие (tmdb)",
				Synopsis: "Синопсис от tmdb",
				Genres:   []string{"драма"},
			},
		},
		&fakeKP{
			id: 920265,
			info: &kinopoisk.Info{
				KPID:            920265,
				Title:           "Прибытие",
				Year:            2016,
				IMDBRating:      7.8,
				IMDBVoteCount:   1000,
				Rating:          7.7,
				RatingVoteCount: 50000,
			},
		},
		&fakeIMDB{rating: imdb.Rating{Rating: 7.9, VoteCount: 700000}, popularity: 120},
	)

	info, err := agg.GetMovieInfo(context.Background(), Query{Title: "Arrival", Year: 2016})
	require.NoError(t, err)
	require.NotNil(t, info)

	// en comes from the primary provider
	assert.Equal(t, "Arrival", info.Title.Raw(models.LangEN))
	// ru title prefers kinopoisk over tmdb-ru
	assert.Equal(t, "Прибытие", info.Title.Raw(models.LangRU))
	// kp had no ru genres, so tmdb-ru fills in
	assert.Equal(t, []string{"драма"}, info.Genres.Raw(models.LangRU))
	// kp had no ru synopsis? it did not set one, tmdb-ru fills in
	assert.Equal(t, "Синопсис от tmdb", info.Synopsis.Raw(models.LangRU))
	// direct imdb scrape wins over the kp mirror
	assert.Equal(t, 7.9, info.IMDBRating)
	assert.Equal(t, 700000, info.IMDBRatingVoteCount)
	assert.Equal(t, 120, info.IMDBPopularity)
	assert.Equal(t, 7.7, info.KPRating)
	assert.Equal(t, 329865, info.TMDBID)
	assert.Equal(t, 920265, info.KPID)
	assert.Equal(t, "tt2543164", info.IMDBID)
	assert.Equal(t, 2016, info.Year)
}

func TestIMDBMirrorFillsInWhenScrapeIsEmpty(t *testing.T) {
	agg := newAggregator(
		&fakeTMDB{
			match: &tmdb.Match{TMDBID: 1, Title: "Arrival"},
			en:    &tmdb.Info{TMDBID: 1, IMDBID: "tt2543164", Title: "Arrival"},
		},
		&fakeKP{id: 2, info: &kinopoisk.Info{KPID: 2, Title: "Прибытие", IMDBRating: 7.8, IMDBVoteCount: 1234}},
		&fakeIMDB{},
	)

	info, err := agg.GetMovieInfo(context.Background(), Query{Title: "Arrival", Year: 2016})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 7.8, info.IMDBRating)
	assert.Equal(t, 1234, info.IMDBRatingVoteCount)
}

func TestTrustedIDsSkipResolution(t *testing.T) {
	// no match configured: resolution by title would find nothing, so a
	// result proves the query ids were reused
	agg := newAggregator(
		&fakeTMDB{en: &tmdb.Info{TMDBID: 42, Title: "Arrival"}},
		&fakeKP{info: &kinopoisk.Info{KPID: 7, Title: "Прибытие"}},
		&fakeIMDB{},
	)

	info, err := agg.GetMovieInfo(context.Background(), Query{TMDBID: 42, KPID: 7})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 42, info.TMDBID)
	assert.Equal(t, 7, info.KPID)
}

func TestGetUpdatesPopularityOnly(t *testing.T) {
	agg := newAggregator(
		&fakeTMDB{},
		&fakeKP{id: 2, info: &kinopoisk.Info{KPID: 2, Title: "Прибытие", Rating: 7.7}},
		&fakeIMDB{rating: imdb.Rating{Rating: 7.9, VoteCount: 1}, popularity: 300},
	)

	updates, err := agg.GetUpdates(context.Background(), Query{IMDBID: "tt2543164"}, true)
	require.NoError(t, err)
	assert.Equal(t, 300, updates.IMDBPopularity)
	assert.Zero(t, updates.KPRating, "popularity-only must not fetch ratings")
	assert.Zero(t, updates.IMDBRating)
}

func TestUpdatesApplyToKeepsLowPrevPopularity(t *testing.T) {
	info := &models.MovieInfo{IMDBPopularity: 500, IMDBRating: 7.0}

	Updates{IMDBPopularity: 0, PopularityOnly: true}.ApplyTo(info)
	assert.Equal(t, 500, info.IMDBPopularity,
		"a lost popularity rank must not clobber a previous top-1000 rank")

	Updates{IMDBPopularity: 800, PopularityOnly: true}.ApplyTo(info)
	assert.Equal(t, 800, info.IMDBPopularity)
	assert.Equal(t, 7.0, info.IMDBRating, "popularity-only leaves ratings alone")

	info.IMDBPopularity = 5000
	Updates{IMDBPopularity: 0, PopularityOnly: true}.ApplyTo(info)
	assert.Equal(t, 0, info.IMDBPopularity,
		"an out-of-chart rank may be dropped")
}

func TestUpdatesApplyToMergesRatings(t *testing.T) {
	info := &models.MovieInfo{IMDBRating: 7.0, KPRating: 7.5}

	Updates{IMDBRating: 7.2, IMDBRatingVoteCount: 10, KPRating: 0}.ApplyTo(info)
	assert.Equal(t, 7.2, info.IMDBRating)
	assert.Equal(t, 7.5, info.KPRating, "a missing re-fetch keeps the old rating")
}
