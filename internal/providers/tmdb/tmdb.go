package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"filmstrip/internal/fetch"
	"filmstrip/internal/models"
)

const (
	imageRoot    = "https://image.tmdb.org/t/p"
	posterSize   = "w780"
	backdropSize = "w1280"
)

// Client talks to the TMDB v3 API. It is the primary provider: authoritative
// for all base-language fields and a secondary source for Russian ones.
type Client struct {
	baseURL string
	apiKey  string
	loader  fetch.Loader
}

func New(baseURL, apiKey string, loader fetch.Loader) *Client {
	return &Client{baseURL: baseURL, apiKey: apiKey, loader: loader}
}

// Match is a discovery-time identity hit: enough to dedup against the store
// before the full info fetch.
type Match struct {
	TMDBID int
	Title  string
}

// Info is TMDB's contribution for one movie in one language.
type Info struct {
	TMDBID           int
	IMDBID           string
	Title            string
	OriginalTitle    string
	OriginalLanguage string
	Synopsis         string
	Genres           []string
	Keywords         []string
	Countries        []string
	PosterURL        string
	BackdropURL      string
	ReleaseDate      string
	Runtime          int
	Rating           float64
	RatingVoteCount  int
	YoutubeIDs       []string
	Credits          models.Credits
}

type findResponse struct {
	MovieResults []movieResult `json:"movie_results"`
}

type searchResponse struct {
	Results []movieResult `json:"results"`
}

type movieResult struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type movieDetails struct {
	ID               int     `json:"id"`
	IMDBID           string  `json:"imdb_id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	OriginalLanguage string  `json:"original_language"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	ReleaseDate      string  `json:"release_date"`
	Runtime          int     `json:"runtime"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Genres           []struct {
		Name string `json:"name"`
	} `json:"genres"`
	ProductionCountries []struct {
		ISO  string `json:"iso_3166_1"`
		Name string `json:"name"`
	} `json:"production_countries"`
	Videos struct {
		Results []struct {
			Key  string `json:"key"`
			Site string `json:"site"`
			Type string `json:"type"`
		} `json:"results"`
	} `json:"videos"`
	Keywords struct {
		Keywords []struct {
			Name string `json:"name"`
		} `json:"keywords"`
	} `json:"keywords"`
	Credits struct {
		Cast []struct {
			Name        string `json:"name"`
			Character   string `json:"character"`
			ProfilePath string `json:"profile_path"`
		} `json:"cast"`
		Crew []struct {
			Name        string `json:"name"`
			Job         string `json:"job"`
			ProfilePath string `json:"profile_path"`
		} `json:"crew"`
	} `json:"credits"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	raw, err := c.loader.Load(ctx, fmt.Sprintf("%s/%s?%s", c.baseURL, path, params.Encode()))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode tmdb %s response: %w", path, err)
	}
	return nil
}

// ResolveID finds the TMDB id for a movie, trusting an IMDB id when the
// query carries one, otherwise searching by title and year. Returns 0 when
// nothing matches.
func (c *Client) ResolveID(ctx context.Context, title string, year int, imdbID string) (int, error) {
	match, err := c.FindMatch(ctx, title, year, imdbID)
	if err != nil || match == nil {
		return 0, err
	}
	return match.TMDBID, nil
}

// FindMatch is ResolveID plus the matched base-language title, used by the
// identity resolver to re-check the store under a second title spelling.
func (c *Client) FindMatch(ctx context.Context, title string, year int, imdbID string) (*Match, error) {
	var results []movieResult

	if imdbID != "" {
		var res findResponse
		params := url.Values{"external_source": {"imdb_id"}}
		if err := c.get(ctx, "find/"+imdbID, params, &res); err != nil {
			if fetch.IsPermanent(err) {
				return nil, nil
			}
			return nil, err
		}
		results = res.MovieResults
	} else {
		var res searchResponse
		params := url.Values{
			"query": {title},
			"year":  {strconv.Itoa(year)},
		}
		if err := c.get(ctx, "search/movie", params, &res); err != nil {
			if fetch.IsPermanent(err) {
				return nil, nil
			}
			return nil, err
		}
		results = res.Results
	}

	if len(results) == 0 {
		return nil, nil
	}
	return &Match{TMDBID: results[0].ID, Title: results[0].Title}, nil
}

// GetInfo fetches the movie details in one language, with videos, keywords
// and credits appended. A 404 yields (nil, nil): the provider simply has
// nothing to contribute.
func (c *Client) GetInfo(ctx context.Context, tmdbID int, lang models.Lang) (*Info, error) {
	var details movieDetails
	params := url.Values{
		"language":           {string(lang)},
		"append_to_response": {"videos,keywords,credits"},
	}
	if err := c.get(ctx, "movie/"+strconv.Itoa(tmdbID), params, &details); err != nil {
		if fetch.IsPermanent(err) {
			return nil, nil
		}
		return nil, err
	}

	info := &Info{
		TMDBID:           details.ID,
		IMDBID:           details.IMDBID,
		Title:            details.Title,
		OriginalTitle:    details.OriginalTitle,
		OriginalLanguage: details.OriginalLanguage,
		Synopsis:         details.Overview,
		ReleaseDate:      details.ReleaseDate,
		Runtime:          details.Runtime,
		Rating:           details.VoteAverage,
		RatingVoteCount:  details.VoteCount,
	}

	if details.PosterPath != "" {
		info.PosterURL = fmt.Sprintf("%s/%s%s", imageRoot, posterSize, details.PosterPath)
	}
	if details.BackdropPath != "" {
		info.BackdropURL = fmt.Sprintf("%s/%s%s", imageRoot, backdropSize, details.BackdropPath)
	}

	for _, g := range details.Genres {
		info.Genres = append(info.Genres, g.Name)
	}
	for _, k := range details.Keywords.Keywords {
		info.Keywords = append(info.Keywords, k.Name)
	}
	for _, country := range details.ProductionCountries {
		// base language keeps ISO codes, localized names otherwise
		if lang == models.LangEN {
			info.Countries = append(info.Countries, country.ISO)
		} else {
			info.Countries = append(info.Countries, country.Name)
		}
	}
	for _, v := range details.Videos.Results {
		if v.Type == "Trailer" && v.Site == "YouTube" {
			info.YoutubeIDs = append(info.YoutubeIDs, v.Key)
		}
	}

	for _, member := range details.Credits.Cast {
		info.Credits.Cast = append(info.Credits.Cast, models.CastMember{
			Name:      member.Name,
			Character: member.Character,
			PhotoURL:  profileURL(member.ProfilePath),
		})
	}
	for _, member := range details.Credits.Crew {
		if member.Job == "Director" {
			info.Credits.Crew.Directors = append(info.Credits.Crew.Directors, models.CrewMember{
				Name:     member.Name,
				PhotoURL: profileURL(member.ProfilePath),
			})
		}
	}

	return info, nil
}

func profileURL(path string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", imageRoot, posterSize, path)
}
