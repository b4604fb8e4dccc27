package yts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"filmstrip/internal/fetch"
	"filmstrip/internal/models"
	"filmstrip/internal/torrents"
)

// minTotalSeeds gates the listing: releases with fewer aggregate seeds are
// too fresh or too obscure to bother persisting.
const minTotalSeeds = 700

var trackers = []string{
	"udp://open.demonii.com:1337/announce",
	"udp://tracker.openbittorrent.com:80",
	"udp://tracker.coppersurfer.tk:6969",
	"udp://glotorrents.pw:6969/announce",
	"udp://tracker.opentrackr.org:1337/announce",
	"udp://torrent.gresille.org:80/announce",
	"udp://p4p.arenabg.com:1337",
	"udp://tracker.leechers-paradise.org:6969",
}

// Indexer reads the YTS JSON API: the primary discovery source for English
// releases and a torrent provider for refreshes.
type Indexer struct {
	baseURL string
	loader  fetch.Loader
	filter  *torrents.Filter
}

func New(baseURL string, loader fetch.Loader, filter *torrents.Filter) *Indexer {
	return &Indexer{baseURL: baseURL, loader: loader, filter: filter}
}

// Release is one YTS movie with its torrents already validated.
type Release struct {
	YTSID      int
	IMDBID     string
	Title      string
	Year       int
	UploadedAt time.Time
	TotalSeeds int
	YoutubeID  string
	Torrents   []models.Torrent
}

type listResponse struct {
	Data struct {
		Movies []movieRes `json:"movies"`
	} `json:"data"`
}

type detailResponse struct {
	Data struct {
		Movie *movieRes `json:"movie"`
	} `json:"data"`
}

type movieRes struct {
	ID           int    `json:"id"`
	IMDBCode     string `json:"imdb_code"`
	Title        string `json:"title"`
	Year         int    `json:"year"`
	TrailerCode  string `json:"yt_trailer_code"`
	DateUploaded int64  `json:"date_uploaded_unix"`
	Torrents     []struct {
		Hash      string `json:"hash"`
		Quality   string `json:"quality"`
		Seeds     int    `json:"seeds"`
		Peers     int    `json:"peers"`
		SizeBytes int64  `json:"size_bytes"`
	} `json:"torrents"`
}

func (ix *Indexer) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	raw, err := ix.loader.Load(ctx, fmt.Sprintf("%s/%s?%s", ix.baseURL, endpoint, params.Encode()))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode yts %s response: %w", endpoint, err)
	}
	return nil
}

// GetLatestReleases lists recent well-seeded 1080p uploads, newest first.
func (ix *Indexer) GetLatestReleases(ctx context.Context) ([]Release, error) {
	var res listResponse
	params := url.Values{
		"quality": {"1080p"},
		"limit":   {"50"},
	}
	if err := ix.get(ctx, "list_movies.json", params, &res); err != nil {
		return nil, err
	}

	currentYear := time.Now().Year()
	var releases []Release
	for _, movie := range res.Data.Movies {
		release := ix.releaseFrom(movie)
		if release.Year >= currentYear-1 && release.TotalSeeds > minTotalSeeds {
			releases = append(releases, release)
		}
	}

	sort.SliceStable(releases, func(i, j int) bool {
		if !releases[i].UploadedAt.Equal(releases[j].UploadedAt) {
			return releases[i].UploadedAt.After(releases[j].UploadedAt)
		}
		return releases[i].TotalSeeds > releases[j].TotalSeeds
	})
	return releases, nil
}

// GetReleaseDetails fetches one movie by its YTS id.
func (ix *Indexer) GetReleaseDetails(ctx context.Context, ytsID int) (*Release, error) {
	var res detailResponse
	params := url.Values{"movie_id": {strconv.Itoa(ytsID)}}
	if err := ix.get(ctx, "movie_details.json", params, &res); err != nil {
		return nil, err
	}
	if res.Data.Movie == nil || res.Data.Movie.ID == 0 {
		return nil, fmt.Errorf("no yts release for movie id %d: %w", ytsID, fetch.ErrNotFound)
	}

	release := ix.releaseFrom(*res.Data.Movie)
	return &release, nil
}

func (ix *Indexer) releaseFrom(movie movieRes) Release {
	release := Release{
		YTSID:      movie.ID,
		IMDBID:     movie.IMDBCode,
		Title:      movie.Title,
		Year:       movie.Year,
		UploadedAt: time.Unix(movie.DateUploaded, 0),
		YoutubeID:  movie.TrailerCode,
	}

	for _, t := range movie.Torrents {
		release.TotalSeeds += t.Seeds
		release.Torrents = append(release.Torrents, models.Torrent{
			Source:     models.SourceYTS,
			Quality:    t.Quality,
			Size:       t.SizeBytes,
			Seeds:      t.Seeds,
			Peers:      t.Peers,
			MagnetLink: magnetLink(t.Hash, movie.Title),
		})
	}
	release.Torrents = ix.filter.Apply(release.Torrents)
	return release
}

func magnetLink(hash, title string) string {
	params := url.Values{"dn": {title}, "tr": trackers}
	return fmt.Sprintf("magnet:?xt=urn:btih:%s&%s", hash, params.Encode())
}
