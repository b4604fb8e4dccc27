package torrents

import (
	"filmstrip/internal/config"
	"filmstrip/internal/models"
)

const bytesInGiB = int64(1) << 30

type sizeBand struct {
	min int64
	max int64
}

// Filter validates raw torrent entries against the per-tier plausible size
// bands before they are allowed anywhere near a persisted record. Mislabeled
// listings (a "1080p" rip of half a gigabyte) are dropped here.
type Filter struct {
	bands map[string]sizeBand
}

func NewFilter(cfg config.QualityConfig) *Filter {
	bands := map[string]sizeBand{
		models.Quality720p:  {min: 1 * bytesInGiB, max: 7 * bytesInGiB},
		models.Quality1080p: {min: 2 * bytesInGiB, max: 9 * bytesInGiB},
	}
	for quality, band := range cfg.Bands {
		if _, ok := bands[quality]; !ok {
			continue
		}
		bands[quality] = sizeBand{
			min: int64(band.MinGiB * float64(bytesInGiB)),
			max: int64(band.MaxGiB * float64(bytesInGiB)),
		}
	}
	return &Filter{bands: bands}
}

// Accept reports whether the torrent's declared quality is a supported tier
// and its size falls strictly inside that tier's band (open interval).
func (f *Filter) Accept(t models.Torrent) bool {
	band, ok := f.bands[t.Quality]
	if !ok {
		return false
	}
	return t.Size > band.min && t.Size < band.max
}

// Apply returns only the torrents that pass Accept, preserving order.
func (f *Filter) Apply(in []models.Torrent) []models.Torrent {
	out := make([]models.Torrent, 0, len(in))
	for _, t := range in {
		if f.Accept(t) {
			out = append(out, t)
		}
	}
	return out
}
