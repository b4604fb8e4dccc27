package kinopoisk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"filmstrip/internal/fetch"
	"filmstrip/internal/models"
)

// Client talks to the unofficial Kinopoisk mobile API. It is the
// authoritative source for Russian titles, synopses, genres and credits, and
// mirrors IMDB/RT ratings for movies the direct scrape misses.
type Client struct {
	baseURL string
	loader  fetch.Loader
}

func New(baseURL string, loader fetch.Loader) *Client {
	return &Client{baseURL: baseURL, loader: loader}
}

// Info is Kinopoisk's contribution for one movie. All text fields are
// Russian.
type Info struct {
	KPID                     int
	Title                    string
	OriginalTitle            string
	Synopsis                 string
	Genres                   []string
	Countries                []string
	PosterURL                string
	Stills                   []string
	Year                     int
	Runtime                  int
	MPAARating               string
	Rating                   float64
	RatingVoteCount          int
	IMDBRating               float64
	IMDBVoteCount            int
	RTCriticsRating          int
	RTCriticsRatingVoteCount int
	Credits                  models.Credits
}

type searchResponse struct {
	SearchFilms []struct {
		ID   int    `json:"id"`
		Name string `json:"nameRU"`
		Year string `json:"year"`
	} `json:"searchFilms"`
}

type filmDetail struct {
	FilmID      int    `json:"filmID"`
	NameRU      string `json:"nameRU"`
	NameEN      string `json:"nameEN"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	Country     string `json:"country"`
	PosterURL   string `json:"posterURL"`
	Year        string `json:"year"`
	FilmLength  string `json:"filmLength"`
	RatingMPAA  string `json:"ratingMPAA"`
	RatingData  struct {
		Rating          string `json:"rating"`
		RatingVoteCount string `json:"ratingVoteCount"`
		RatingIMDB      string `json:"ratingIMDb"`
		RatingIMDBVotes string `json:"ratingIMDbVoteCount"`
		RatingRT        string `json:"ratingRFCritics"`
		RatingRTVotes   string `json:"ratingRFCriticsVoteCount"`
	} `json:"ratingData"`
	Gallery  []string `json:"gallery"`
	Creators [][]struct {
		NameRU        string `json:"nameRU"`
		Character     string `json:"description"`
		PosterURL     string `json:"posterURL"`
		ProfessionKey string `json:"professionKey"`
	} `json:"creators"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	raw, err := c.loader.Load(ctx, fmt.Sprintf("%s/%s?%s", c.baseURL, path, params.Encode()))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode kinopoisk %s response: %w", path, err)
	}
	return nil
}

// ResolveID searches for a film by title, preferring a hit whose year
// matches. Returns 0 when nothing plausible is found.
func (c *Client) ResolveID(ctx context.Context, title string, year int) (int, error) {
	var res searchResponse
	params := url.Values{"keyword": {title}}
	if err := c.get(ctx, "getKPSearchInFilms", params, &res); err != nil {
		if fetch.IsPermanent(err) {
			return 0, nil
		}
		return 0, err
	}

	for _, film := range res.SearchFilms {
		if y, _ := strconv.Atoi(film.Year); y == year {
			return film.ID, nil
		}
	}
	if len(res.SearchFilms) > 0 {
		return res.SearchFilms[0].ID, nil
	}
	return 0, nil
}

// GetInfo fetches the film card, including creators. A missing film yields
// (nil, nil).
func (c *Client) GetInfo(ctx context.Context, kpID int) (*Info, error) {
	var detail filmDetail
	params := url.Values{"filmID": {strconv.Itoa(kpID)}}
	if err := c.get(ctx, "getKPFilmDetailView", params, &detail); err != nil {
		if fetch.IsPermanent(err) {
			return nil, nil
		}
		return nil, err
	}
	if detail.NameRU == "" && detail.NameEN == "" {
		return nil, nil
	}

	info := &Info{
		KPID:          kpID,
		Title:         detail.NameRU,
		OriginalTitle: detail.NameEN,
		Synopsis:      detail.Description,
		PosterURL:     detail.PosterURL,
		Stills:        detail.Gallery,
		MPAARating:    detail.RatingMPAA,
		Genres:        splitList(detail.Genre),
		Countries:     splitList(detail.Country),
	}

	info.Year, _ = strconv.Atoi(detail.Year)
	info.Runtime = parseRuntime(detail.FilmLength)
	info.Rating = parseFloat(detail.RatingData.Rating)
	info.RatingVoteCount = parseCount(detail.RatingData.RatingVoteCount)
	info.IMDBRating = parseFloat(detail.RatingData.RatingIMDB)
	info.IMDBVoteCount = parseCount(detail.RatingData.RatingIMDBVotes)
	info.RTCriticsRating = parseCount(strings.TrimSuffix(detail.RatingData.RatingRT, "%"))
	info.RTCriticsRatingVoteCount = parseCount(detail.RatingData.RatingRTVotes)

	for _, group := range detail.Creators {
		for _, person := range group {
			if person.NameRU == "" {
				continue
			}
			switch person.ProfessionKey {
			case "director":
				info.Credits.Crew.Directors = append(info.Credits.Crew.Directors, models.CrewMember{
					Name:     person.NameRU,
					PhotoURL: person.PosterURL,
				})
			case "actor":
				info.Credits.Cast = append(info.Credits.Cast, models.CastMember{
					Name:      person.NameRU,
					Character: person.Character,
					PhotoURL:  person.PosterURL,
				})
			}
		}
	}

	return info, nil
}

// splitList turns kinopoisk's "фантастика, драма" strings into a trimmed
// list.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseRuntime converts "1:56" into minutes.
func parseRuntime(s string) int {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0
	}
	hours, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	minutes, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0
	}
	return hours*60 + minutes
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

// parseCount handles kinopoisk's localized "53 219" style vote counts.
func parseCount(s string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	v, _ := strconv.Atoi(cleaned)
	return v
}
