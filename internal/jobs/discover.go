package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"filmstrip/internal/aggregate"
	"filmstrip/internal/indexers/torrentino"
	"filmstrip/internal/logger"
	"filmstrip/internal/models"
)

// Discovery finds movies the library does not have yet: English releases from
// the yts listing and tpb title mining, Russian releases from the torrentino
// listing. Each discovered item is resolved, aggregated and persisted
// independently; one broken item never fails the batch.
type Discovery struct {
	store     MovieStore
	identity  *IdentityResolver
	meta      MetadataSource
	english   EnglishIndexer
	search    TorrentSearch
	russian   RussianIndexer
	itemDelay time.Duration
	log       *logger.Logger
}

func NewDiscovery(s MovieStore, meta MetadataSource, english EnglishIndexer,
	search TorrentSearch, russian RussianIndexer, itemDelay time.Duration, log *logger.Logger) *Discovery {
	return &Discovery{
		store:     s,
		identity:  NewIdentityResolver(s),
		meta:      meta,
		english:   english,
		search:    search,
		russian:   russian,
		itemDelay: itemDelay,
		log:       log,
	}
}

func (j *Discovery) Job() Job {
	return Job{Name: JobSaveNewMovies, Schedule: "0 */6 * * *", Run: j.Run}
}

func (j *Discovery) Run(ctx context.Context) error {
	if err := j.discoverEnglish(ctx); err != nil {
		return err
	}
	return j.discoverRussian(ctx)
}

// discoverEnglish merges the yts listing with titles mined from tpb, then
// saves each genuinely new candidate. The yts listing failing is a job
// failure; the tpb miner failing just narrows the batch.
func (j *Discovery) discoverEnglish(ctx context.Context) error {
	releases, err := j.english.GetLatestReleases(ctx)
	if err != nil {
		return fmt.Errorf("failed to list english releases: %w", err)
	}

	var candidates []models.MovieCandidate
	for _, release := range releases {
		candidates = append(candidates, models.MovieCandidate{
			Title:     release.Title,
			Year:      release.Year,
			IMDBID:    release.IMDBID,
			YTSID:     release.YTSID,
			YoutubeID: release.YoutubeID,
			Torrents:  release.Torrents,
		})
	}

	mined, err := j.search.GetTopMovies(ctx)
	if err != nil {
		j.log.Warning("Discovery", "discoverEnglish",
			fmt.Sprintf("Title mining failed, continuing with the listing only: %v", err))
	}
	candidates = append(candidates, mined...)

	seen := make(map[string]bool)
	for _, c := range candidates {
		key := strings.ToLower(c.Title)
		if c.Title == "" || seen[key] {
			continue
		}
		seen[key] = true

		if err := j.saveEnglish(ctx, c); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			j.log.Error("Discovery", "discoverEnglish",
				fmt.Sprintf("Failed to save %q (%d): %v", c.Title, c.Year, err))
		}
		if err := pause(ctx, j.itemDelay); err != nil {
			return err
		}
	}
	return nil
}

func (j *Discovery) saveEnglish(ctx context.Context, c models.MovieCandidate) error {
	existing, err := j.identity.FindExisting(ctx, c, models.LangEN)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	// Resolve the canonical identity first: mined titles are noisy and the
	// same movie often arrives under slightly different names, so the dedup
	// check runs again with the resolved keys. A candidate the primary
	// provider cannot match is junk and is dropped outright.
	match, err := j.meta.FindTMDBMatch(ctx, aggregate.Query{Title: c.Title, Year: c.Year, IMDBID: c.IMDBID})
	if err != nil {
		return err
	}
	if match == nil {
		j.log.Debug("Discovery", "saveEnglish",
			fmt.Sprintf("No tmdb match for %q (%d), skipping", c.Title, c.Year))
		return nil
	}
	c.TMDBID = match.TMDBID
	if match.Title != "" {
		c.Title = match.Title
	}
	existing, err = j.identity.FindExisting(ctx, c, models.LangEN)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	var info *models.MovieInfo
	var extraTorrents []models.Torrent
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = j.meta.GetMovieInfo(gctx, aggregate.Query{
			Title: c.Title, Year: c.Year, IMDBID: c.IMDBID, TMDBID: c.TMDBID,
		})
		return err
	})
	g.Go(func() error {
		list, err := j.search.GetTorrentsForMovie(gctx, c.Title)
		if err != nil {
			j.log.Warning("Discovery", "saveEnglish",
				fmt.Sprintf("Torrent search failed for %q: %v", c.Title, err))
			return nil
		}
		extraTorrents = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if info == nil {
		j.log.Debug("Discovery", "saveEnglish",
			fmt.Sprintf("No provider knows %q (%d), skipping", c.Title, c.Year))
		return nil
	}

	info.YTSID = c.YTSID
	if c.YoutubeID != "" && len(info.YoutubeIDs.Raw(models.LangEN)) == 0 {
		info.YoutubeIDs.Set(models.LangEN, []string{c.YoutubeID})
	}

	record := j.newRecord(info)
	record.Torrents.Set(models.LangEN, bySeedsDesc(append(c.Torrents, extraTorrents...)))

	// Russian torrents ride along when the movie is findable on torrentino.
	if ruTitle := info.Title.Raw(models.LangRU); ruTitle != "" && info.KPID != 0 {
		if release := j.russianRelease(ctx, ruTitle, info.KPID); release != nil {
			info.TorrentinoSlug = release.Info.Slug
			record.Torrents.Set(models.LangRU, release.Torrents)
		}
	}

	return j.store.InsertOne(ctx, record)
}

// discoverRussian walks the torrentino listing oldest-first so records keep
// the site's release order.
func (j *Discovery) discoverRussian(ctx context.Context) error {
	listing, err := j.russian.GetLatestReleases(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to list russian releases: %w", err)
	}

	for i := len(listing) - 1; i >= 0; i-- {
		c := listing[i]
		if err := j.saveRussian(ctx, c); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			j.log.Error("Discovery", "discoverRussian",
				fmt.Sprintf("Failed to save %q (%d): %v", c.Title, c.Year, err))
		}
		if err := pause(ctx, j.itemDelay); err != nil {
			return err
		}
	}
	return nil
}

func (j *Discovery) saveRussian(ctx context.Context, c models.MovieCandidate) error {
	existing, err := j.identity.FindExisting(ctx, c, models.LangRU)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	var info *models.MovieInfo
	var release *torrentino.Release
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = j.meta.GetMovieInfo(gctx, aggregate.Query{Title: c.Title, Year: c.Year, KPID: c.KPID})
		return err
	})
	g.Go(func() error {
		rel, err := j.russian.GetReleaseDetails(gctx, c.TorrentinoSlug)
		if err != nil {
			j.log.Warning("Discovery", "saveRussian",
				fmt.Sprintf("Failed to get details for %q: %v", c.TorrentinoSlug, err))
			return nil
		}
		release = rel
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if info == nil {
		j.log.Debug("Discovery", "saveRussian",
			fmt.Sprintf("No provider knows %q (%d), skipping", c.Title, c.Year))
		return nil
	}

	// The listing candidate only carried russian keys. Aggregation may have
	// resolved ids a record saved from the english side is stored under, so
	// the dedup check runs again with the resolved identity.
	resolved := models.MovieCandidate{
		Title:  info.Title.Raw(models.LangEN),
		Year:   info.Year,
		IMDBID: info.IMDBID,
		TMDBID: info.TMDBID,
		KPID:   info.KPID,
	}
	existing, err = j.identity.FindExisting(ctx, resolved, models.LangEN)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	info.TorrentinoSlug = c.TorrentinoSlug
	if release != nil {
		fillFromRelease(info, &release.Info)
	}

	record := j.newRecord(info)
	if release != nil {
		record.Torrents.Set(models.LangRU, release.Torrents)
	}

	if enTitle := info.Title.Raw(models.LangEN); enTitle != "" {
		list, err := j.search.GetTorrentsForMovie(ctx, enTitle)
		if err != nil {
			j.log.Warning("Discovery", "saveRussian",
				fmt.Sprintf("Torrent search failed for %q: %v", enTitle, err))
		} else {
			record.Torrents.Set(models.LangEN, list)
		}
	}

	return j.store.InsertOne(ctx, record)
}

func (j *Discovery) newRecord(info *models.MovieInfo) *models.MovieRecord {
	now := time.Now()
	title := info.Title.Raw(models.LangEN)
	if title == "" {
		title = info.OriginalTitle
	}
	if title == "" {
		title = info.Title.Raw(models.LangRU)
	}
	return &models.MovieRecord{
		Slug:              models.Slugify(title, info.Year),
		Info:              *info,
		InfoUpdatedAt:     now,
		TorrentsUpdatedAt: now,
	}
}

func (j *Discovery) russianRelease(ctx context.Context, ruTitle string, kpID int) *torrentino.Release {
	slug, err := j.russian.FindSlug(ctx, ruTitle, kpID)
	if err != nil || slug == "" {
		return nil
	}
	release, err := j.russian.GetReleaseDetails(ctx, slug)
	if err != nil {
		j.log.Warning("Discovery", "russianRelease",
			fmt.Sprintf("Failed to get details for %q: %v", slug, err))
		return nil
	}
	return release
}

// fillFromRelease patches Russian-side gaps in the reconciled record with
// what the torrentino detail page showed; the providers always win when they
// had an answer.
func fillFromRelease(info *models.MovieInfo, rel *torrentino.ReleaseInfo) {
	if info.Title.Raw(models.LangRU) == "" {
		info.Title.Set(models.LangRU, rel.Title)
	}
	if info.Synopsis.Raw(models.LangRU) == "" {
		info.Synopsis.Set(models.LangRU, rel.Synopsis)
	}
	if len(info.Genres.Raw(models.LangRU)) == 0 {
		info.Genres.Set(models.LangRU, rel.Genres)
	}
	if len(info.ProductionCountries.Raw(models.LangRU)) == 0 {
		info.ProductionCountries.Set(models.LangRU, rel.Countries)
	}
	if info.PosterURL.Raw(models.LangRU) == "" {
		info.PosterURL.Set(models.LangRU, rel.PosterURL)
	}
	ruCredits := info.Credits.Raw(models.LangRU)
	if len(ruCredits.Cast) == 0 && len(ruCredits.Crew.Directors) == 0 {
		info.Credits.Set(models.LangRU, rel.Credits)
	}
	if info.OriginalTitle == "" {
		info.OriginalTitle = rel.OriginalTitle
	}
	if info.Runtime == 0 {
		info.Runtime = rel.Runtime
	}
	if info.ReleaseDate == "" {
		info.ReleaseDate = rel.ReleaseDate
	}
	if info.Year == 0 {
		info.Year = rel.Year
	}
	if info.KPID == 0 {
		info.KPID = rel.KPID
	}
}
