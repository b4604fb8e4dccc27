package torrentino

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"filmstrip/internal/fetch"
	"filmstrip/internal/models"
	"filmstrip/internal/torrents"
)

// Indexer scrapes torrentino listing and detail pages. It is the discovery
// source for Russian releases and the only provider of Russian torrents.
type Indexer struct {
	baseURL string
	loader  fetch.Loader
	filter  *torrents.Filter
}

func New(baseURL string, loader fetch.Loader, filter *torrents.Filter) *Indexer {
	return &Indexer{baseURL: baseURL, loader: loader, filter: filter}
}

// Release is one fully-extracted detail page: the localized movie info plus
// the torrent rows that survived filtering.
type Release struct {
	Info     ReleaseInfo
	Torrents []models.Torrent
}

type ReleaseInfo struct {
	Slug          string
	KPID          int
	Title         string
	OriginalTitle string
	Year          int
	Runtime       int
	Synopsis      string
	PosterURL     string
	ReleaseDate   string
	Countries     []string
	Genres        []string
	Credits       models.Credits
}

// GetLatestReleases fetches one page of the recent high-quality listing.
func (ix *Indexer) GetLatestReleases(ctx context.Context, page int) ([]models.MovieCandidate, error) {
	if page < 1 {
		page = 1
	}
	currentYear := time.Now().Year()
	params := url.Values{
		"quality": {"hq"},
		"years":   {fmt.Sprintf("%d,%d", currentYear-1, currentYear)},
		"sort":    {"date"},
		"page":    {strconv.Itoa(page)},
	}

	raw, err := ix.loader.Load(ctx, fmt.Sprintf("%s/movies?%s", ix.baseURL, params.Encode()))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}
	return ParseListing(doc), nil
}

// FindSlug searches the site for a movie by its Russian title and returns
// the slug whose embedded id matches kpID, or "" when none does.
func (ix *Indexer) FindSlug(ctx context.Context, title string, kpID int) (string, error) {
	params := url.Values{
		"type":   {"movies"},
		"search": {title},
	}
	raw, err := ix.loader.Load(ctx, fmt.Sprintf("%s/search?%s", ix.baseURL, params.Encode()))
	if err != nil {
		if fetch.IsPermanent(err) {
			return "", nil
		}
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse search page: %w", err)
	}

	for _, candidate := range ParseListing(doc) {
		if candidate.KPID == kpID {
			return candidate.TorrentinoSlug, nil
		}
	}
	return "", nil
}

// GetReleaseDetails fetches and extracts one detail page. A page that yields
// no usable release is an error: the caller decides whether that fails the
// item or the batch.
func (ix *Indexer) GetReleaseDetails(ctx context.Context, slug string) (*Release, error) {
	raw, err := ix.loader.Load(ctx, fmt.Sprintf("%s/movie/%s", ix.baseURL, slug))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail page: %w", err)
	}

	release := ParseDetail(doc, slug, ix.filter)
	if release == nil {
		return nil, fmt.Errorf("no usable release on page for %q", slug)
	}
	return release, nil
}

// ParseListing extracts movie candidates from a listing or search page.
// Tiles missing any required field (slug, title, year, kp id) are skipped,
// so a malformed page yields zero candidates rather than an error.
func ParseListing(doc *goquery.Document) []models.MovieCandidate {
	var candidates []models.MovieCandidate

	doc.Find(".showcase .tiles > .tile[data-movie-id]").Each(func(_ int, tile *goquery.Selection) {
		href, _ := tile.ChildrenFiltered("a").First().Attr("href")
		slug := strings.TrimPrefix(href, "/movie/")
		title := strings.TrimSpace(tile.Find("a .title .name").First().Text())
		year, _ := strconv.Atoi(strings.TrimSpace(tile.Find("a .title .year").First().Text()))
		kpID := idFromSlug(slug)

		if slug == "" || slug == href || title == "" || year == 0 || kpID == 0 {
			return
		}
		candidates = append(candidates, models.MovieCandidate{
			Title:          title,
			Year:           year,
			KPID:           kpID,
			TorrentinoSlug: slug,
		})
	})

	return candidates
}

// ParseDetail extracts the movie info and filtered torrent table from a
// detail page. Returns nil when the page is missing the required fields.
func ParseDetail(doc *goquery.Document, slug string, filter *torrents.Filter) *Release {
	info := movieInfoFrom(doc)
	if info == nil {
		return nil
	}
	info.Slug = slug
	info.KPID = idFromSlug(slug)

	list := filter.Apply(torrentsFrom(doc))
	sort.SliceStable(list, func(i, j int) bool { return list[i].Seeds > list[j].Seeds })

	return &Release{Info: *info, Torrents: list}
}

func movieInfoFrom(doc *goquery.Document) *ReleaseInfo {
	head := doc.Find(".entity > .head-plate > .head").First()
	details := head.Find(".specialty").First()

	title := strings.TrimSpace(head.Find(".header-group > h1").First().Text())
	year, _ := strconv.Atoi(strings.TrimSpace(clauseValue(details, "Год")))
	if title == "" || year == 0 {
		return nil
	}

	info := &ReleaseInfo{
		Title:         title,
		Year:          year,
		OriginalTitle: strings.TrimSpace(head.Find(".header-group > h2").First().Text()),
		Synopsis:      strings.TrimSpace(details.ChildrenFiltered("p").First().Text()),
		Runtime:       parseRuntime(clauseValue(details, "Длительность")),
		Countries:     parseCountries(clauseValue(details, "Страна")),
		Genres:        splitTrim(clauseValue(details, "Жанр")),
		ReleaseDate:   parseLocalDate(clauseValue(details, "Премьера в РФ")),
	}
	info.PosterURL, _ = head.Find(".cover > img").First().Attr("src")

	for _, name := range splitTrim(clauseValue(details, "Режиссер")) {
		info.Credits.Crew.Directors = append(info.Credits.Crew.Directors, models.CrewMember{Name: name})
	}
	for _, name := range splitTrim(clauseValue(details, "В ролях")) {
		info.Credits.Cast = append(info.Credits.Cast, models.CastMember{Name: name})
	}

	return info
}

// validTranslationTypes is the allow-list of audio translation labels; rows
// with fan-made or single-voice dubs are dropped.
var validTranslationTypes = map[string]bool{
	"Лицензия":      true,
	"Дублированный": true,
	"Профессиональный многоголосый": true,
}

func torrentsFrom(doc *goquery.Document) []models.Torrent {
	var list []models.Torrent

	doc.Find(".list-start > .table-list").First().Find("tr.item").Each(func(_ int, row *goquery.Selection) {
		quality := qualityFromVideo(row.ChildrenFiltered(".video").First().Text())

		translation := strings.TrimSpace(row.ChildrenFiltered(".audio").First().Text())
		if translation == ".  ." {
			translation = ""
		}
		audioTracks := splitTracks(row.ChildrenFiltered(".languages").First().Text())

		size := parseSizeGB(row.ChildrenFiltered(".size").First().Text())
		seeds, _ := strconv.Atoi(strings.TrimSpace(row.Find(".seed-leech > .seed").First().Text()))
		peers, _ := strconv.Atoi(strings.TrimSpace(row.Find(".seed-leech > .leech").First().Text()))
		magnet, _ := row.Find(".download > a").First().Attr("data-default")

		if quality == "" ||
			!validTranslationTypes[translation] ||
			!contains(audioTracks, "ru") ||
			size == 0 || seeds <= 0 || peers <= 0 ||
			!strings.HasPrefix(magnet, "magnet:?") {
			return
		}

		list = append(list, models.Torrent{
			Source:     models.SourceTorrentino,
			Quality:    quality,
			Size:       size,
			Seeds:      seeds,
			Peers:      peers,
			MagnetLink: magnet,
		})
	})

	return list
}

// clauseValue finds the value cell of a labeled tr.clause row, the markup's
// equivalent of a definition list.
func clauseValue(details *goquery.Selection, label string) string {
	var value string
	details.Find("tr.clause").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return true
		}
		if strings.Contains(cells.First().Text(), label) {
			value = cells.Eq(1).Text()
			return false
		}
		return true
	})
	return value
}

// qualityFromVideo buckets a "1920x800" style video spec into a tier; SD and
// unparseable rows yield "".
func qualityFromVideo(video string) string {
	width, _ := strconv.Atoi(strings.TrimSpace(strings.SplitN(video, "x", 2)[0]))
	switch {
	case width > 1900:
		return models.Quality1080p
	case width > 1000:
		return models.Quality720p
	default:
		return ""
	}
}

// parseRuntime converts "2:15" into minutes.
func parseRuntime(s string) int {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0
	}
	hours, err1 := strconv.Atoi(parts[0])
	minutes, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0
	}
	return hours*60 + minutes
}

// parseCountries normalizes the comma-joined country string: capitalized
// forms, with the all-caps abbreviation США restored after capitalization.
func parseCountries(s string) []string {
	var out []string
	for _, part := range splitTrim(s) {
		c := capitalize(part)
		if c == "Сша" {
			c = "США"
		}
		out = append(out, c)
	}
	return out
}

// parseLocalDate converts "25/08/2016" into "2016-08-25".
func parseLocalDate(s string) string {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ""
	}
	return parts[2] + "-" + parts[1] + "-" + parts[0]
}

// parseSizeGB converts "2.5 ГБ" into bytes; anything not expressed in
// gigabytes is rejected (smaller rips never pass the quality bands anyway).
func parseSizeGB(s string) int64 {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "ГБ") {
		return 0
	}
	num := strings.TrimSpace(strings.ReplaceAll(s, "ГБ", ""))
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", "."), 64)
	if err != nil {
		return 0
	}
	return int64(v * float64(int64(1)<<30))
}

func splitTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitTracks(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	}) {
		if part != "" && part != "null" {
			out = append(out, part)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return s
	}
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	return string(runes)
}

// idFromSlug pulls the kinopoisk id embedded at the start of a torrentino
// slug like "258687-interstellar".
func idFromSlug(slug string) int {
	end := 0
	for end < len(slug) && slug[end] >= '0' && slug[end] <= '9' {
		end++
	}
	id, _ := strconv.Atoi(slug[:end])
	return id
}
