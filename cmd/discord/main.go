// Command discord runs the Plexody bot.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/kkdai/youtube/v2"
	"golang.org/x/sync/errgroup"

	"github.com/keshon/plexody/internal/catalog/plex"
	"github.com/keshon/plexody/internal/config"
	"github.com/keshon/plexody/internal/discord"
	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/internal/music/resolver"
	"github.com/keshon/plexody/internal/statushttp"
	"github.com/keshon/plexody/internal/storage"
	"github.com/keshon/plexody/internal/version"
	"github.com/keshon/plexody/pkg/util"
)

// httpTimeout bounds catalog and search requests, not audio streaming.
const httpTimeout = 30 * time.Second

func main() {
	cfg, err := config.New()
	if err != nil {
		logging.Configure(logging.Config{})
		log := logging.Base()
		log.Fatal().Err(err).Msg("configuration error")
	}
	logging.Configure(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})

	if err := run(cfg); err != nil {
		log := logging.WithComponent("main")
		log.Fatal().Err(err).Msg("exited with error")
	}
}

func run(cfg *config.Config) error {
	log := logging.WithComponent("main")
	log.Info().Str("version", version.Version).Msg("starting " + version.AppName)

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	httpClient, err := util.NewHTTPClient(httpTimeout, cfg.ProxyURL)
	if err != nil {
		return fmt.Errorf("proxy configuration: %w", err)
	}

	var (
		plexSrc *resolver.PlexSource
		sources []resolver.Source
	)
	if cfg.PlexURL != "" && cfg.PlexToken != "" {
		plexSrc = resolver.NewPlex(plex.New(cfg.PlexURL, cfg.PlexToken, httpClient))
		sources = append(sources, plexSrc)
	} else {
		log.Warn().Msg("no Plex server configured, playing from YouTube and direct streams only")
	}
	sources = append(sources,
		resolver.NewYouTube(&youtube.Client{HTTPClient: httpClient}, httpClient),
		resolver.NewDirect(httpClient),
	)

	importer := resolver.NewImporter()
	defer importer.Shutdown()

	bot, err := discord.NewBot(cfg, store, resolver.NewMux(sources...), importer, plexSrc)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status := statushttp.New(cfg.StatusAddr, bot.Sessions(), importer.Active)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx) })
	g.Go(func() error { return status.Run(gctx) })

	err = g.Wait()
	log.Info().Msg("shut down")
	return err
}
