package app

import (
	"fmt"

	"filmstrip/internal/aggregate"
	"filmstrip/internal/config"
	"filmstrip/internal/fetch"
	"filmstrip/internal/indexers/torrentino"
	"filmstrip/internal/indexers/tpb"
	"filmstrip/internal/indexers/yts"
	"filmstrip/internal/jobs"
	"filmstrip/internal/logger"
	"filmstrip/internal/providers/imdb"
	"filmstrip/internal/providers/kinopoisk"
	"filmstrip/internal/providers/tmdb"
	"filmstrip/internal/store"
	"filmstrip/internal/torrents"
)

// App wires the whole pipeline together: one rate-limited, cached client per
// external source, the providers and indexers on top of them, and the jobs on
// top of those.
type App struct {
	Runner *jobs.Runner

	store  *store.Store
	caches []*fetch.Cache
}

func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	st, err := store.New(cfg.Store)
	if err != nil {
		return nil, err
	}
	a := &App{store: st}

	loader := func(name string) fetch.Loader {
		src := cfg.Source(name)
		cache := fetch.NewCache(fetch.NewClient(src).Get, src.TTL)
		a.caches = append(a.caches, cache)
		return cache
	}

	agg := aggregate.New(
		tmdb.New(cfg.Source("tmdb").URL, cfg.TMDB.APIKey, loader("tmdb")),
		kinopoisk.New(cfg.Source("kinopoisk").URL, loader("kinopoisk")),
		imdb.New(cfg.Source("imdb").URL, loader("imdb")),
		log,
	)

	filter := torrents.NewFilter(cfg.Quality)
	ytsIndexer := yts.New(cfg.Source("yts").URL, loader("yts"), filter)
	tpbIndexer := tpb.New(cfg.Source("tpb").URL, loader("tpb"), filter)
	torrentinoIndexer := torrentino.New(cfg.Source("torrentino").URL, loader("torrentino"), filter)

	runner, err := jobs.NewRunner(cfg.Jobs, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	delay := cfg.Jobs.ItemDelay
	for _, job := range []jobs.Job{
		jobs.NewDiscovery(st, agg, ytsIndexer, tpbIndexer, torrentinoIndexer, delay, log).Job(),
		jobs.NewInfoRefresh(st, agg, delay, log).Job(),
		jobs.NewTorrentRefresh(st, ytsIndexer, tpbIndexer, torrentinoIndexer, delay, log).Job(),
	} {
		if err := runner.Register(job, cfg.Jobs); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to register jobs: %w", err)
		}
	}

	a.Runner = runner
	return a, nil
}

func (a *App) Close() {
	for _, c := range a.caches {
		c.Close()
	}
	a.store.Close()
}
