package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"trackarr/internal/api"
	"trackarr/internal/cache"
	"trackarr/internal/config"
	"trackarr/internal/database"
	"trackarr/internal/httpclient"
	"trackarr/internal/imports"
	"trackarr/internal/logger"
	"trackarr/internal/mapping"
	"trackarr/internal/metadata"
	"trackarr/internal/models"
	"trackarr/internal/providers/comicvine"
	"trackarr/internal/providers/hardcover"
	"trackarr/internal/providers/igdb"
	"trackarr/internal/providers/mal"
	"trackarr/internal/providers/manual"
	"trackarr/internal/providers/openlibrary"
	"trackarr/internal/providers/tmdb"
	"trackarr/internal/providers/youtube"
	"trackarr/internal/ratelimit"
	"trackarr/internal/shutdown"
	"trackarr/internal/tracker"
	"trackarr/internal/webhooks"
)

const version = "0.1.0"

// app holds everything a command needs after bootstrap
type app struct {
	cfg        *config.Config
	db         *gorm.DB
	cache      *cache.Cache
	http       *httpclient.Client
	dispatcher *metadata.Dispatcher
	mapping    *mapping.Service
	tracker    *tracker.Service
	processor  *webhooks.Processor
	tmdb       *tmdb.Client
	mal        *mal.Client
}

var rootCmd = &cobra.Command{
	Use:   "trackarr",
	Short: "Trackarr tracks watched and played media across metadata providers",
	Long: `Trackarr ingests playback webhooks from Plex, Jellyfin and Emby,
resolves media across TMDB, MAL, IGDB and other providers, and keeps
per-user progress and status records.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and background schedulers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Trackarr",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Trackarr v%s\n", version)
	},
}

var refreshMappingsCmd = &cobra.Command{
	Use:   "refresh-mappings",
	Short: "Fetch the community anime-IDs table and refresh the cached copy",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, teardown, err := bootstrap()
		if err != nil {
			return err
		}
		defer teardown()

		table, err := a.mapping.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Refreshed anime mapping table: %d entries\n", len(table))
		return nil
	},
}

var (
	mapFromSource string
	mapFromID     string
	mapToSource   string
	mapToID       string
	mapConfirm    bool
)

var mapIDCmd = &cobra.Command{
	Use:   "map-id",
	Short: "Create or replace an admin ID mapping override",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, teardown, err := bootstrap()
		if err != nil {
			return err
		}
		defer teardown()

		err = a.mapping.UpsertOverride(cmd.Context(),
			models.Source(mapFromSource), mapFromID,
			models.Source(mapToSource), mapToID, mapConfirm)
		if err == mapping.ErrMappingExists {
			return fmt.Errorf("a mapping for %s:%s already exists, pass --confirm to replace it",
				mapFromSource, mapFromID)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Mapped %s:%s to %s:%s\n", mapFromSource, mapFromID, mapToSource, mapToID)
		return nil
	},
}

var (
	importUser string
	importMode string
	importFile string
	importName string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import tracking records from an external service",
}

var importIMDBCmd = &cobra.Command{
	Use:   "imdb",
	Short: "Import an IMDB ratings/watchlist CSV export",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, teardown, err := bootstrap()
		if err != nil {
			return err
		}
		defer teardown()

		user, err := lookupUser(cmd.Context(), a.db, importUser)
		if err != nil {
			return err
		}

		f, err := os.Open(importFile)
		if err != nil {
			return fmt.Errorf("opening %s: %w", importFile, err)
		}
		defer f.Close()

		importer := imports.NewIMDBImporter(a.tmdb, a.tracker)
		result, err := importer.Import(cmd.Context(), f, user, imports.Mode(importMode))
		if err != nil {
			return err
		}
		printImportResult(result)
		return nil
	},
}

var importMALCmd = &cobra.Command{
	Use:   "mal",
	Short: "Import a MyAnimeList user's anime and manga lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, teardown, err := bootstrap()
		if err != nil {
			return err
		}
		defer teardown()

		user, err := lookupUser(cmd.Context(), a.db, importUser)
		if err != nil {
			return err
		}

		importer := imports.NewMALImporter(a.http, a.tracker,
			a.cfg.Providers.MAL, a.cfg.Providers.NoImageURL)
		result, err := importer.Import(cmd.Context(), importName, user, imports.Mode(importMode))
		if err != nil {
			return err
		}
		printImportResult(result)
		return nil
	},
}

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yml)")
	cobra.OnInitialize(initConfig)

	mapIDCmd.Flags().StringVar(&mapFromSource, "from-source", "", "source provider of the id to override")
	mapIDCmd.Flags().StringVar(&mapFromID, "from-id", "", "id reported by the media server")
	mapIDCmd.Flags().StringVar(&mapToSource, "to-source", "", "provider the id should resolve to")
	mapIDCmd.Flags().StringVar(&mapToID, "to-id", "", "correct provider id")
	mapIDCmd.Flags().BoolVar(&mapConfirm, "confirm", false, "replace an existing mapping")
	mapIDCmd.MarkFlagRequired("from-source")
	mapIDCmd.MarkFlagRequired("from-id")
	mapIDCmd.MarkFlagRequired("to-source")
	mapIDCmd.MarkFlagRequired("to-id")

	importCmd.PersistentFlags().StringVar(&importUser, "user", "", "local username to import for")
	importCmd.PersistentFlags().StringVar(&importMode, "mode", string(imports.ModeNew), "import mode: new or overwrite")
	importIMDBCmd.Flags().StringVar(&importFile, "file", "", "path to the IMDB CSV export")
	importIMDBCmd.MarkFlagRequired("file")
	importMALCmd.Flags().StringVar(&importName, "mal-username", "", "MyAnimeList username to import from")
	importMALCmd.MarkFlagRequired("mal-username")
	importCmd.AddCommand(importIMDBCmd, importMALCmd)

	rootCmd.AddCommand(serveCmd, versionCmd, refreshMappingsCmd, mapIDCmd, importCmd)
}

func initConfig() {
	// Skip config loading for version command
	if len(os.Args) > 1 && os.Args[1] == "version" {
		return
	}

	if err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap wires the full dependency graph. The returned teardown
// closes the cache and database.
func bootstrap() (*app, func(), error) {
	cfg := config.Get()
	logger.InitializeLoggers(cfg.GetAppLogLevel(), cfg.GetProviderLogLevel())

	if err := database.Initialize(); err != nil {
		return nil, nil, err
	}
	db := database.Get()

	c, err := cache.Open(cfg.Cache.Path, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	limiter := ratelimit.New(cfg.Request.GlobalRatePerSecond)
	limiter.SetHostLimit("api.myanimelist.net", cfg.Providers.MAL.RatePerMinute, time.Minute)
	limiter.SetHostLimit("api.igdb.com", cfg.Providers.IGDB.RatePerSecond, time.Second)
	limiter.SetHostLimit("comicvine.gamespot.com", cfg.Providers.ComicVine.RatePerHour, time.Hour)
	limiter.SetHostLimit("openlibrary.org", cfg.Providers.OpenLibrary.RatePerMinute, time.Minute)
	limiter.SetHostLimit("api.hardcover.app", cfg.Providers.Hardcover.RatePerMinute, time.Minute)

	httpClient := httpclient.New(httpclient.Config{
		Timeout: time.Duration(cfg.Request.TimeoutSeconds) * time.Second,
		Limiter: limiter,
	})

	displayTZ := time.UTC
	if cfg.Display.Timezone != "" {
		if tz, err := time.LoadLocation(cfg.Display.Timezone); err == nil {
			displayTZ = tz
		}
	}

	noImage := cfg.Providers.NoImageURL
	tmdbClient := tmdb.New(httpClient, cfg.Providers.TMDB, noImage)
	malClient := mal.New(httpClient, cfg.Providers.MAL, noImage, displayTZ)
	igdbClient := igdb.New(httpClient, c, cfg.Providers.IGDB, noImage)
	hardcoverClient := hardcover.New(httpClient, cfg.Providers.Hardcover, noImage)
	openlibraryClient := openlibrary.New(httpClient, noImage)
	comicvineClient := comicvine.New(httpClient, cfg.Providers.ComicVine, noImage)
	youtubeClient := youtube.New(httpClient, cfg.Providers.YouTube, noImage)
	manualClient := manual.New(db, noImage)

	dispatcher := metadata.NewDispatcher(c)
	dispatcher.Register(models.SourceTMDB, models.MediaTypeMovie, tmdbClient)
	dispatcher.Register(models.SourceTMDB, models.MediaTypeTV, tmdbClient)
	dispatcher.Register(models.SourceTMDB, models.MediaTypeSeason, tmdbClient)
	dispatcher.Register(models.SourceTMDB, models.MediaTypeEpisode, tmdbClient)
	dispatcher.Register(models.SourceMAL, models.MediaTypeAnime, malClient)
	dispatcher.Register(models.SourceMAL, models.MediaTypeManga, malClient)
	dispatcher.Register(models.SourceIGDB, models.MediaTypeGame, igdbClient)
	dispatcher.Register(models.SourceHardcover, models.MediaTypeBook, hardcoverClient)
	dispatcher.Register(models.SourceOpenLibrary, models.MediaTypeBook, openlibraryClient)
	dispatcher.Register(models.SourceComicVine, models.MediaTypeComic, comicvineClient)
	dispatcher.Register(models.SourceYouTube, models.MediaTypeEpisode, youtubeClient)
	dispatcher.Register(models.SourceYouTube, models.MediaTypeYouTubeVideo, youtubeClient)
	for _, mt := range []models.MediaType{
		models.MediaTypeMovie, models.MediaTypeTV, models.MediaTypeSeason,
		models.MediaTypeEpisode, models.MediaTypeAnime, models.MediaTypeManga,
		models.MediaTypeGame, models.MediaTypeBook, models.MediaTypeComic,
	} {
		dispatcher.Register(models.SourceManual, mt, manualClient)
	}

	mappingService := mapping.New(httpClient, c, db, cfg.Mapping.AnimeIDsURL)
	trackerService := tracker.New(db, dispatcher)
	processor := webhooks.NewProcessor(tmdbClient, dispatcher, mappingService, trackerService)

	a := &app{
		cfg:        cfg,
		db:         db,
		cache:      c,
		http:       httpClient,
		dispatcher: dispatcher,
		mapping:    mappingService,
		tracker:    trackerService,
		processor:  processor,
		tmdb:       tmdbClient,
		mal:        malClient,
	}
	teardown := func() {
		c.Close()
		database.Close()
	}
	return a, teardown, nil
}

func runServe() error {
	a, _, err := bootstrap()
	if err != nil {
		return err
	}
	log := logger.AppLogger()

	normalizers := []webhooks.Normalizer{
		webhooks.NewPlexNormalizer(),
		webhooks.NewJellyfinNormalizer(),
		webhooks.NewEmbyNormalizer(),
	}
	server := api.NewServer(a.cfg.API, a.db, a.dispatcher, a.mapping, a.processor, normalizers)

	scheduler := cron.New()
	if spec := a.cfg.Mapping.RefreshCron; spec != "" {
		_, err := scheduler.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := a.mapping.Refresh(ctx); err != nil {
				log.WithFields(map[string]interface{}{"error": err.Error()}).
					Warn("scheduled mapping refresh failed")
			}
		})
		if err != nil {
			return fmt.Errorf("invalid mapping refresh schedule %q: %w", spec, err)
		}
	}
	scheduler.Start()

	handler := shutdown.New(30 * time.Second)
	handler.Register(func(ctx context.Context) error { return database.Close() })
	handler.Register(func(ctx context.Context) error { return a.cache.Close() })
	handler.Register(func(ctx context.Context) error {
		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		return nil
	})
	handler.Register(server.Shutdown)

	go func() {
		if err := server.Run(); err != nil {
			log.WithFields(map[string]interface{}{"error": err.Error()}).
				Error("api server stopped", err)
			handler.TriggerShutdown()
		}
	}()

	handler.Wait()
	return nil
}

func lookupUser(ctx context.Context, db *gorm.DB, username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("--user is required")
	}
	var user models.User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, fmt.Errorf("unknown user %q", username)
	}
	return &user, nil
}

func printImportResult(result *imports.Result) {
	for mediaType, count := range result.Counts {
		fmt.Printf("Imported %d %s\n", count, mediaType)
	}
	for _, warning := range result.Warnings {
		fmt.Printf("Warning: %s\n", warning)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
