package aggregate

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"filmstrip/internal/logger"
	"filmstrip/internal/models"
	"filmstrip/internal/providers/imdb"
	"filmstrip/internal/providers/kinopoisk"
	"filmstrip/internal/providers/tmdb"
)

// Query carries whatever identity is already known about a movie. Provider
// ids present in the query are trusted and reused; missing ones are resolved
// by title and year.
type Query struct {
	Title  string
	Year   int
	IMDBID string
	TMDBID int
	KPID   int
}

type TMDBProvider interface {
	FindMatch(ctx context.Context, title string, year int, imdbID string) (*tmdb.Match, error)
	GetInfo(ctx context.Context, tmdbID int, lang models.Lang) (*tmdb.Info, error)
}

type KinopoiskProvider interface {
	ResolveID(ctx context.Context, title string, year int) (int, error)
	GetInfo(ctx context.Context, kpID int) (*kinopoisk.Info, error)
}

type IMDBProvider interface {
	GetRating(ctx context.Context, imdbID string) (imdb.Rating, error)
	GetPopularity(ctx context.Context, imdbID string) (int, error)
}

// Aggregator queries the independent metadata providers for one movie and
// reconciles their answers into a single bilingual record. A provider that
// resolves nothing contributes nothing; the aggregation as a whole is absent
// only when no provider produced a title in any language.
type Aggregator struct {
	tmdb TMDBProvider
	kp   KinopoiskProvider
	imdb IMDBProvider
	log  *logger.Logger
}

func New(tmdbClient TMDBProvider, kpClient KinopoiskProvider, imdbClient IMDBProvider, log *logger.Logger) *Aggregator {
	return &Aggregator{tmdb: tmdbClient, kp: kpClient, imdb: imdbClient, log: log}
}

// FindTMDBMatch exposes primary-provider identity resolution for the dedup
// path.
func (a *Aggregator) FindTMDBMatch(ctx context.Context, q Query) (*tmdb.Match, error) {
	return a.tmdb.FindMatch(ctx, q.Title, q.Year, q.IMDBID)
}

func (a *Aggregator) resolveTMDBID(ctx context.Context, q Query) int {
	if q.TMDBID != 0 {
		return q.TMDBID
	}
	match, err := a.tmdb.FindMatch(ctx, q.Title, q.Year, q.IMDBID)
	if err != nil {
		a.log.Warning("Aggregator", "resolveTMDBID",
			fmt.Sprintf("Failed to resolve tmdb id for %q: %v", q.Title, err))
		return 0
	}
	if match == nil {
		return 0
	}
	return match.TMDBID
}

func (a *Aggregator) resolveKPID(ctx context.Context, q Query) int {
	if q.KPID != 0 {
		return q.KPID
	}
	id, err := a.kp.ResolveID(ctx, q.Title, q.Year)
	if err != nil {
		a.log.Warning("Aggregator", "resolveKPID",
			fmt.Sprintf("Failed to resolve kp id for %q: %v", q.Title, err))
		return 0
	}
	return id
}

func (a *Aggregator) tmdbInfo(ctx context.Context, tmdbID int, lang models.Lang) *tmdb.Info {
	if tmdbID == 0 {
		return nil
	}
	info, err := a.tmdb.GetInfo(ctx, tmdbID, lang)
	if err != nil {
		a.log.Warning("Aggregator", "tmdbInfo",
			fmt.Sprintf("Failed to get tmdb %s info for %d: %v", lang, tmdbID, err))
		return nil
	}
	return info
}

func (a *Aggregator) kpInfo(ctx context.Context, kpID int) *kinopoisk.Info {
	if kpID == 0 {
		return nil
	}
	info, err := a.kp.GetInfo(ctx, kpID)
	if err != nil {
		a.log.Warning("Aggregator", "kpInfo",
			fmt.Sprintf("Failed to get kp info for %d: %v", kpID, err))
		return nil
	}
	return info
}

// GetMovieInfo resolves provider ids, fans the info fetches out concurrently
// and merges the answers under fixed precedence. Returns (nil, nil) when no
// provider produced a title in any language; that is the only absence.
func (a *Aggregator) GetMovieInfo(ctx context.Context, q Query) (*models.MovieInfo, error) {
	var tmdbID, kpID int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { tmdbID = a.resolveTMDBID(gctx, q); return nil })
	g.Go(func() error { kpID = a.resolveKPID(gctx, q); return nil })
	g.Wait()

	var en, ru *tmdb.Info
	var kp *kinopoisk.Info
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error { en = a.tmdbInfo(gctx, tmdbID, models.LangEN); return nil })
	g.Go(func() error { ru = a.tmdbInfo(gctx, tmdbID, models.LangRU); return nil })
	g.Go(func() error { kp = a.kpInfo(gctx, kpID); return nil })
	g.Wait()

	if en == nil {
		en = &tmdb.Info{}
	}
	if ru == nil {
		ru = &tmdb.Info{}
	}
	if kp == nil {
		kp = &kinopoisk.Info{}
	}

	if en.Title == "" && ru.Title == "" && kp.Title == "" {
		return nil, nil
	}

	imdbID := q.IMDBID
	if imdbID == "" {
		imdbID = en.IMDBID
	}
	rating, popularity := a.imdbNumbers(ctx, imdbID)

	info := &models.MovieInfo{
		IMDBID:           firstString(en.IMDBID, q.IMDBID),
		TMDBID:           firstInt(en.TMDBID, q.TMDBID),
		KPID:             kpID,
		OriginalTitle:    firstString(en.OriginalTitle, kp.OriginalTitle),
		OriginalLanguage: en.OriginalLanguage,
		Keywords:         en.Keywords,
		BackdropURL:      firstString(en.BackdropURL, firstOf(kp.Stills)),
		ReleaseDate:      en.ReleaseDate,
		Runtime:          firstInt(en.Runtime, kp.Runtime),
		MPAARating:       kp.MPAARating,

		TMDBRating:               en.Rating,
		TMDBRatingVoteCount:      en.RatingVoteCount,
		IMDBRating:               firstFloat(rating.Rating, kp.IMDBRating),
		IMDBRatingVoteCount:      firstInt(rating.VoteCount, kp.IMDBVoteCount),
		IMDBPopularity:           popularity,
		KPRating:                 kp.Rating,
		KPRatingVoteCount:        kp.RatingVoteCount,
		RTCriticsRating:          kp.RTCriticsRating,
		RTCriticsRatingVoteCount: kp.RTCriticsRatingVoteCount,
	}

	info.Title.Set(models.LangEN, en.Title)
	info.Title.Set(models.LangRU, firstString(kp.Title, ru.Title))
	info.Synopsis.Set(models.LangEN, en.Synopsis)
	info.Synopsis.Set(models.LangRU, firstString(kp.Synopsis, ru.Synopsis))
	info.Genres.Set(models.LangEN, en.Genres)
	info.Genres.Set(models.LangRU, firstList(kp.Genres, ru.Genres))
	info.ProductionCountries.Set(models.LangEN, en.Countries)
	info.ProductionCountries.Set(models.LangRU, kp.Countries)
	info.PosterURL.Set(models.LangEN, en.PosterURL)
	info.PosterURL.Set(models.LangRU, firstString(ru.PosterURL, kp.PosterURL))
	info.YoutubeIDs.Set(models.LangEN, en.YoutubeIDs)
	info.YoutubeIDs.Set(models.LangRU, ru.YoutubeIDs)
	info.Credits.Set(models.LangEN, en.Credits)
	if len(kp.Credits.Cast) > 0 || len(kp.Credits.Crew.Directors) > 0 {
		info.Credits.Set(models.LangRU, kp.Credits)
	} else {
		info.Credits.Set(models.LangRU, ru.Credits)
	}

	info.Year = kp.Year
	if info.Year == 0 && len(en.ReleaseDate) >= 4 {
		info.Year, _ = strconv.Atoi(en.ReleaseDate[:4])
	}
	if info.Year == 0 {
		info.Year = q.Year
	}

	return info, nil
}

// Updates are the volatile numeric fields re-fetched by the refresh job;
// static fields (credits, synopses) are deliberately not touched.
type Updates struct {
	IMDBRating               float64
	IMDBRatingVoteCount      int
	IMDBPopularity           int
	KPRating                 float64
	KPRatingVoteCount        int
	RTCriticsRating          int
	RTCriticsRatingVoteCount int
	PopularityOnly           bool
}

// ApplyTo merges the updates into an existing info record. In popularity-
// only mode ratings are left as they were; the previous popularity is kept
// when the movie had broken into the top 1000 and the re-fetch lost it.
func (u Updates) ApplyTo(info *models.MovieInfo) {
	prev := info.IMDBPopularity
	if u.IMDBPopularity != 0 || prev == 0 || prev >= 1000 {
		info.IMDBPopularity = u.IMDBPopularity
	}

	if u.PopularityOnly {
		return
	}
	if u.IMDBRating != 0 {
		info.IMDBRating = u.IMDBRating
		info.IMDBRatingVoteCount = u.IMDBRatingVoteCount
	}
	if u.KPRating != 0 {
		info.KPRating = u.KPRating
		info.KPRatingVoteCount = u.KPRatingVoteCount
	}
	if u.RTCriticsRating != 0 {
		info.RTCriticsRating = u.RTCriticsRating
		info.RTCriticsRatingVoteCount = u.RTCriticsRatingVoteCount
	}
}

// GetUpdates is the cheap refresh variant: ratings and popularity only. The
// same graceful-degradation rule applies; missing providers leave zero
// fields.
func (a *Aggregator) GetUpdates(ctx context.Context, q Query, popularityOnly bool) (*Updates, error) {
	updates := &Updates{PopularityOnly: popularityOnly}

	if popularityOnly {
		_, updates.IMDBPopularity = a.imdbNumbers(ctx, q.IMDBID)
		return updates, nil
	}

	var kp *kinopoisk.Info
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		kp = a.kpInfo(gctx, a.resolveKPID(gctx, q))
		return nil
	})
	g.Go(func() error {
		rating, popularity := a.imdbNumbers(gctx, q.IMDBID)
		updates.IMDBRating = rating.Rating
		updates.IMDBRatingVoteCount = rating.VoteCount
		updates.IMDBPopularity = popularity
		return nil
	})
	g.Wait()

	if kp != nil {
		if updates.IMDBRating == 0 {
			updates.IMDBRating = kp.IMDBRating
			updates.IMDBRatingVoteCount = kp.IMDBVoteCount
		}
		updates.KPRating = kp.Rating
		updates.KPRatingVoteCount = kp.RatingVoteCount
		updates.RTCriticsRating = kp.RTCriticsRating
		updates.RTCriticsRatingVoteCount = kp.RTCriticsRatingVoteCount
	}

	return updates, nil
}

func (a *Aggregator) imdbNumbers(ctx context.Context, imdbID string) (imdb.Rating, int) {
	if imdbID == "" {
		return imdb.Rating{}, 0
	}

	var rating imdb.Rating
	var popularity int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := a.imdb.GetRating(gctx, imdbID)
		if err != nil {
			a.log.Warning("Aggregator", "imdbNumbers",
				fmt.Sprintf("Failed to get imdb rating for %s: %v", imdbID, err))
			return nil
		}
		rating = r
		return nil
	})
	g.Go(func() error {
		p, err := a.imdb.GetPopularity(gctx, imdbID)
		if err != nil {
			a.log.Warning("Aggregator", "imdbNumbers",
				fmt.Sprintf("Failed to get imdb popularity for %s: %v", imdbID, err))
			return nil
		}
		popularity = p
		return nil
	})
	g.Wait()

	return rating, popularity
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstFloat(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstList(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

func firstOf(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}
