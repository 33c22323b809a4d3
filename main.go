package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bryan-buckman/talkshelf/internal/catalog"
	"github.com/bryan-buckman/talkshelf/internal/config"
	"github.com/bryan-buckman/talkshelf/internal/content"
	"github.com/bryan-buckman/talkshelf/internal/database"
	"github.com/bryan-buckman/talkshelf/internal/player"
	"github.com/bryan-buckman/talkshelf/internal/server"
)

type Opts struct {
	ConfigPath string `long:"config" short:"c" env:"TALKSHELF_CONFIG_PATH" description:"path to config.toml"`
	Addr       string `long:"addr" env:"TALKSHELF_ADDR" description:"listen address, overrides server.addr"`
	Debug      bool   `long:"debug"`
}

var version = "dev"

func main() {
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
	})

	opts := Opts{}
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		log.WithError(err).Fatal("failed to parse command line arguments")
	}
	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	}

	log.WithField("version", version).Info("running talkshelf")

	log.Debugf("loading configuration %q", opts.ConfigPath)
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration file")
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}

	if cfg.Storage.Backend == database.BackendSQLite || cfg.Storage.Backend == database.BackendBadger {
		if err := os.MkdirAll(dataDir(cfg.Storage), 0o755); err != nil {
			log.WithError(err).Fatal("failed to create data directory")
		}
	}
	store, err := database.Open(database.Options{
		Backend:  cfg.Storage.Backend,
		Path:     cfg.Storage.Path,
		DSN:      cfg.Storage.DSN,
		RedisURL: cfg.Storage.RedisURL,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to open storage")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Error("failed to close storage")
		}
	}()
	log.Infof("using %s storage", store.DatabaseType())

	var cache catalog.Cache
	if cfg.Cache.RedisURL != "" {
		redisCache, err := catalog.NewRedisCache(cfg.Cache.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect episode cache")
		}
		defer redisCache.Close()
		cache = redisCache
	}

	cat := catalog.New(newSource(cfg.Content), cache, cfg.Content.Refresh.Duration)
	refresher, err := catalog.NewRefresher(cat, catalog.Schedule(cfg.Content.Refresh.Duration, cfg.Content.CronSchedule))
	if err != nil {
		log.WithError(err).Fatal("failed to schedule refresh")
	}

	srv, err := server.New(server.Options{
		Catalog:      cat,
		Refresher:    refresher,
		Store:        store,
		Title:        cfg.Server.Title,
		PublicURL:    cfg.Server.PublicURL,
		MediaBaseURL: cfg.Content.MediaBaseURL,
		PageSize:     cfg.Server.PageSize,
		Player: player.Options{
			OpenDelay:  cfg.Player.OpenDelay.Duration,
			CloseDelay: cfg.Player.CloseDelay.Duration,
			SeekStep:   cfg.Player.SeekStep.Duration,
		},
	})
	if err != nil {
		log.WithError(err).Fatal("failed to create server")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return srv.Start(cfg.Server.Addr)
	})

	group.Go(func() error {
		select {
		case <-ctx.Done():
		case <-stop:
			log.Info("received stop signal")
		}
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		log.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("wait error")
	}
	log.Info("gracefully stopped")
}

func newSource(c config.Content) content.Source {
	if c.Source == "rss" {
		return content.NewFeedSource(c.FeedURL, c.MediaBaseURL)
	}
	return content.NewWordPress(content.WordPressOptions{
		APIURL:       c.APIURL,
		CategoryID:   c.CategoryID,
		PerPage:      c.PerPage,
		MediaBaseURL: c.MediaBaseURL,
	})
}

// dataDir is the directory that must exist before the backend opens.
func dataDir(s config.Storage) string {
	if s.Backend == database.BackendBadger {
		return s.Path
	}
	return filepath.Dir(s.Path)
}
