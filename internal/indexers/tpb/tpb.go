package tpb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"filmstrip/internal/fetch"
	"filmstrip/internal/models"
	"filmstrip/internal/torrents"
)

// hdMoviesCategory is TPB's HD movies category.
const hdMoviesCategory = "207"

var trackers = []string{
	"udp://tracker.coppersurfer.tk:6969/announce",
	"udp://tracker.openbittorrent.com:6969/announce",
	"udp://tracker.opentrackr.org:1337",
	"udp://tracker.leechers-paradise.org:6969/announce",
}

// Indexer queries The Pirate Bay JSON search API. It is the secondary
// English torrent source and a discovery source for title mining.
type Indexer struct {
	baseURL string
	loader  fetch.Loader
	filter  *torrents.Filter
}

func New(baseURL string, loader fetch.Loader, filter *torrents.Filter) *Indexer {
	return &Indexer{baseURL: baseURL, loader: loader, filter: filter}
}

type searchResult struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	InfoHash string `json:"info_hash"`
	Seeders  string `json:"seeders"`
	Leechers string `json:"leechers"`
	Size     string `json:"size"`
}

func (ix *Indexer) search(ctx context.Context, query string) ([]searchResult, error) {
	params := url.Values{
		"q":   {query},
		"cat": {hdMoviesCategory},
	}
	raw, err := ix.loader.Load(ctx, fmt.Sprintf("%s/q.php?%s", ix.baseURL, params.Encode()))
	if err != nil {
		return nil, err
	}

	var results []searchResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("failed to decode tpb response: %w", err)
	}
	return results, nil
}

// GetTorrentsForMovie searches for HD rips of a titled movie, validates them
// and keeps the best-seeded torrent per quality tier.
func (ix *Indexer) GetTorrentsForMovie(ctx context.Context, title string) ([]models.Torrent, error) {
	sanitized := strings.ReplaceAll(title, "'s", "")
	results, err := ix.search(ctx, sanitized+" 1080p|720p -HC")
	if err != nil {
		if fetch.IsPermanent(err) {
			return nil, nil
		}
		return nil, err
	}

	var list []models.Torrent
	for _, res := range results {
		// hardcoded-subtitle rips slip past the query exclusion sometimes
		if strings.Contains(res.Name, " HC ") {
			continue
		}
		t := torrentFrom(res)
		if t.Quality == "" || !ix.filter.Accept(t) {
			continue
		}
		list = append(list, t)
	}
	return uniquePerQuality(list), nil
}

// GetTopMovies mines movie titles from the current year's best-seeded HD
// uploads; the discovery job then resolves them against the metadata
// providers.
func (ix *Indexer) GetTopMovies(ctx context.Context) ([]models.MovieCandidate, error) {
	currentYear := time.Now().Year()
	results, err := ix.search(ctx, fmt.Sprintf("%d 1080p|720p -HC", currentYear))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var candidates []models.MovieCandidate
	for _, res := range results {
		title := titleFromName(res.Name, currentYear)
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		candidates = append(candidates, models.MovieCandidate{
			Title: title,
			Year:  currentYear,
		})
	}
	return candidates, nil
}

func torrentFrom(res searchResult) models.Torrent {
	size, _ := strconv.ParseInt(res.Size, 10, 64)
	seeds, _ := strconv.Atoi(res.Seeders)
	peers, _ := strconv.Atoi(res.Leechers)

	return models.Torrent{
		Source:     models.SourceTPB,
		Name:       res.Name,
		Quality:    qualityFromName(res.Name),
		Size:       size,
		Seeds:      seeds,
		Peers:      peers,
		MagnetLink: magnetLink(res.InfoHash, res.Name),
	}
}

func qualityFromName(name string) string {
	switch {
	case strings.Contains(name, "720p"):
		return models.Quality720p
	case strings.Contains(name, "1080p"):
		return models.Quality1080p
	default:
		return ""
	}
}

// uniquePerQuality keeps the first (the API returns seed-ordered results)
// torrent of each tier.
func uniquePerQuality(list []models.Torrent) []models.Torrent {
	seen := make(map[string]bool)
	var out []models.Torrent
	for _, t := range list {
		if seen[t.Quality] {
			continue
		}
		seen[t.Quality] = true
		out = append(out, t)
	}
	return out
}

// titleFromName recovers a plausible movie title from a release name like
// "Arrival.2016.1080p.BluRay.x264": everything before the year marker with
// dots folded back into spaces.
func titleFromName(name string, year int) string {
	idx := strings.Index(name, strconv.Itoa(year))
	if idx <= 0 {
		return ""
	}

	title := name[:idx]
	title = strings.ReplaceAll(title, ".", " ")
	title = strings.Trim(title, " ([")
	title = strings.Join(strings.Fields(title), " ")
	if head, _, found := strings.Cut(title, "/"); found {
		title = strings.TrimSpace(head)
	}
	return title
}

func magnetLink(hash, name string) string {
	params := url.Values{"dn": {name}, "tr": trackers}
	return fmt.Sprintf("magnet:?xt=urn:btih:%s&%s", hash, params.Encode())
}
