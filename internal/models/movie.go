package models

import "time"

// Torrent source names as they appear in persisted records.
const (
	SourceTPB        = "The Pirate Bay"
	SourceYTS        = "YTS"
	SourceTorrentino = "Torrentino"
)

// Quality tiers supported by the pipeline. Anything else is dropped before
// persistence.
const (
	Quality720p  = "720p"
	Quality1080p = "1080p"
)

type Torrent struct {
	Source     string `json:"source"`
	Name       string `json:"name,omitempty"`
	Quality    string `json:"quality"`
	Size       int64  `json:"size"`
	Seeds      int    `json:"seeds"`
	Peers      int    `json:"peers"`
	MagnetLink string `json:"magnetLink"`
}

type CastMember struct {
	Character string `json:"character,omitempty"`
	Name      string `json:"name"`
	PhotoURL  string `json:"photoUrl,omitempty"`
}

type CrewMember struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl,omitempty"`
}

type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew struct {
		Directors []CrewMember `json:"directors"`
	} `json:"crew"`
}

// MovieInfo is the canonical reconciled record built by the aggregator.
// Language-dependent fields are MultiLang; numeric fields use the zero value
// to mean "unknown" (providers frequently return nothing for them).
type MovieInfo struct {
	IMDBID         string `json:"imdbId,omitempty"`
	TMDBID         int    `json:"tmdbId,omitempty"`
	KPID           int    `json:"kpId,omitempty"`
	YTSID          int    `json:"ytsId,omitempty"`
	TorrentinoSlug string `json:"torrentinoSlug,omitempty"`

	Title               MultiLang[string]   `json:"title"`
	OriginalTitle       string              `json:"originalTitle,omitempty"`
	OriginalLanguage    string              `json:"originalLanguage,omitempty"`
	Synopsis            MultiLang[string]   `json:"synopsis"`
	Genres              MultiLang[[]string] `json:"genres"`
	Keywords            []string            `json:"keywords,omitempty"`
	ProductionCountries MultiLang[[]string] `json:"productionCountries"`
	Credits             MultiLang[Credits]  `json:"credits"`
	PosterURL           MultiLang[string]   `json:"posterUrl"`
	BackdropURL         string              `json:"backdropUrl,omitempty"`
	YoutubeIDs          MultiLang[[]string] `json:"youtubeIds"`

	Year        int    `json:"year,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
	Runtime     int    `json:"runtime,omitempty"`
	MPAARating  string `json:"mpaaRating,omitempty"`

	TMDBRating               float64 `json:"tmdbRating,omitempty"`
	TMDBRatingVoteCount      int     `json:"tmdbRatingVoteCount,omitempty"`
	IMDBRating               float64 `json:"imdbRating,omitempty"`
	IMDBRatingVoteCount      int     `json:"imdbRatingVoteCount,omitempty"`
	IMDBPopularity           int     `json:"imdbPopularity,omitempty"`
	KPRating                 float64 `json:"kpRating,omitempty"`
	KPRatingVoteCount        int     `json:"kpRatingVoteCount,omitempty"`
	RTCriticsRating          int     `json:"rtCriticsRating,omitempty"`
	RTCriticsRatingVoteCount int     `json:"rtCriticsRatingVoteCount,omitempty"`
}

// MovieRecord is the persisted entity. Created once by discovery, mutated in
// place by the refresh jobs; never deleted.
type MovieRecord struct {
	ID                string               `json:"id"`
	Slug              string               `json:"slug"`
	Info              MovieInfo            `json:"info"`
	Torrents          MultiLang[[]Torrent] `json:"torrents"`
	InfoUpdatedAt     time.Time            `json:"infoUpdatedAt"`
	TorrentsUpdatedAt time.Time            `json:"torrentsUpdatedAt"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
}

// MovieCandidate is a transient discovery result. It carries whatever
// identity keys the indexer exposed; never persisted directly.
type MovieCandidate struct {
	Title          string
	Year           int
	IMDBID         string
	TMDBID         int
	KPID           int
	YTSID          int
	TorrentinoSlug string
	YoutubeID      string
	Torrents       []Torrent
}
