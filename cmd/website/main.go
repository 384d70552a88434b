package main

import (
	"context"
	"embed"
	"encoding/gob"
	"log/slog"
	"net/http"
	"time"

	"github.com/adampresley/adamgokit/awsconfig"
	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/mux"
	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/adamgokit/retrier"
	"github.com/adampresley/adamgokit/s3"
	"github.com/adampresley/adamgokit/sessions"
	"github.com/adampresley/fotofacil/cmd/website/internal/auth"
	"github.com/adampresley/fotofacil/cmd/website/internal/clientaccess"
	"github.com/adampresley/fotofacil/cmd/website/internal/configuration"
	"github.com/adampresley/fotofacil/cmd/website/internal/home"
	"github.com/adampresley/fotofacil/cmd/website/internal/photographer"
	"github.com/adampresley/fotofacil/cmd/website/internal/support"
	"github.com/adampresley/fotofacil/cmd/website/internal/thumbnails"
	"github.com/adampresley/fotofacil/pkg/access"
	"github.com/adampresley/fotofacil/pkg/migrations"
	"github.com/adampresley/fotofacil/pkg/models"
	"github.com/adampresley/fotofacil/pkg/services"
	_ "github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rfberaldo/sqlz"
	"github.com/rfberaldo/sqlz/binds"
)

var (
	Version string = "development"
	appName string = "fotofacil"

	//go:embed app
	appFS embed.FS

	config configuration.Config

	/* Services */
	albumService     services.AlbumServicer
	db               *sqlz.DB
	emailService     services.Mailer
	identityService  services.IdentityServicer
	photoKeys        services.PhotoKeys
	photoService     services.PhotoServicer
	photoStorage     services.PhotoStorage
	renderer         rendering.TemplateRenderer
	selectionService services.SelectionServicer
	sessionResolver  access.SessionResolver
	sessionService   sessions.Session[*models.Identity]
	thumbnailCreator *thumbnails.ThumbnailCreator
	unlockedSessions sessions.Session[*models.UnlockedAlbums]
	zipService       *services.ZipService

	/* Controllers */
	authController         auth.AuthHandlers
	clientAccessController clientaccess.ClientAccessHandlers
	homeController         home.HomeHandlers
	photographerController photographer.PhotographerHandlers
	supportController      support.SupportHandlers
)

func main() {
	var (
		err error
	)

	config = configuration.LoadConfig()
	setupLogger(&config, Version)

	slog.Info("configuration loaded",
		slog.String("app", appName),
		slog.String("version", Version),
		slog.String("loglevel", config.LogLevel),
		slog.String("host", config.Host),
		slog.String("baseURL", config.BaseURL),
		slog.String("awsEndpointUrl", config.AwsEndpointUrl),
		slog.String("awsRegion", config.AwsRegion),
	)

	slog.Debug("setting up...")

	shutdownCtx, cancel := context.WithCancel(context.Background())

	/*
	 * Setup services
	 */
	binds.Register("sqlite", binds.BindByDriver("sqlite3"))
	if db, err = sqlz.Connect("sqlite", config.DSN); err != nil {
		panic(err)
	}

	if err = migrations.Migrate(db); err != nil {
		panic(err)
	}

	gob.Register(&models.Identity{})
	gob.Register(&models.UnlockedAlbums{})

	cookieStore := sessions.NewCookieStore(config.CookieSecret)
	sessionService = sessions.NewSessionWrapper[*models.Identity](cookieStore, "fotofacil", "identity")
	unlockedSessions = sessions.NewSessionWrapper[*models.UnlockedAlbums](cookieStore, "fotofacilalbums", "unlocked")

	awsConfig := &awsconfig.Config{
		Endpoint:        config.AwsEndpointUrl,
		Region:          config.AwsRegion,
		AccessKeyID:     config.AwsAccessKeyId,
		SecretAccessKey: config.AwsSecretAccessKey,
	}

	retrier.Retry(func() error {
		if err = awsConfig.Load(); err != nil {
			slog.Error("failed to load AWS config. trying again", "error", err)
			return err
		}

		return nil
	})

	if err != nil {
		panic(err)
	}

	s3Client, err := s3.NewClient(awsConfig)

	if err != nil {
		panic(err)
	}

	photoStorage = services.NewS3PhotoStorage(services.S3PhotoStorageConfig{
		Bucket:   config.AwsBucket,
		Region:   config.AwsRegion,
		S3Client: s3Client,
	})

	if err = photoStorage.EnsureBucket(); err != nil {
		panic(err)
	}

	renderer, err = rendering.NewGoTemplateRenderer(rendering.GoTemplateRendererConfig{
		TemplateDir:       "app",
		TemplateExtension: ".html",
		TemplateFS:        appFS,
		PagesDir:          "pages",
	})

	if err != nil {
		panic(err)
	}

	photoKeys = services.PhotoKeys{Folder: config.AlbumsPhotoFolder}

	emailService = services.NewEmailService(services.EmailServiceConfig{
		ApiKey:       config.EmailApiKey,
		FromEmail:    config.FromEmail,
		FromName:     config.FromName,
		SupportEmail: config.SupportEmail,
	})

	identityService = services.NewIdentityService(services.IdentityServiceConfig{
		BaseURL: config.BaseURL,
		DB:      db,
		Mailer:  emailService,
	})

	albumService = services.NewAlbumService(services.AlbumServiceConfig{
		DB:         db,
		Identities: identityService,
	})

	selectionService = services.NewSelectionService(services.SelectionServiceConfig{
		Albums:      albumService,
		DB:          db,
		Identities:  identityService,
		Mailer:      emailService,
		MaxLockWait: time.Second * 5,
	})

	thumbnailCreator = thumbnails.NewThumbnailCreator(thumbnails.ThumbnailCreatorConfig{
		Keys:        photoKeys,
		MaxWorkers:  config.MaxThumbnailWorkers,
		ShutdownCtx: shutdownCtx,
		Storage:     photoStorage,
	})

	photoService = services.NewPhotoService(services.PhotoServiceConfig{
		Albums:  albumService,
		DB:      db,
		Keys:    photoKeys,
		Storage: photoStorage,
		Tagger: services.NewTaggingService(services.TaggingServiceConfig{
			ApiKey:   config.TaggingApiKey,
			Endpoint: config.TaggingEndpoint,
		}),
		Thumbnails: thumbnailCreator,
	})

	zipService = services.NewZipService(services.ZipServiceConfig{
		BaseDownloadURL: config.BaseURL,
		ExpirationDays:  config.DownloadExpirationDays,
		Keys:            photoKeys,
		Mailer:          emailService,
		Photos:          photoService,
		Selections:      selectionService,
		Storage:         photoStorage,
	})

	sessionResolver = access.NewSessionResolver(access.SessionResolverConfig{
		Identities:     identityService,
		SessionService: sessionService,
	})

	/*
	 * Setup controllers
	 */
	authController = auth.NewAuthController(auth.AuthControllerConfig{
		IdentityService: identityService,
		Renderer:        renderer,
		Sessions:        sessionResolver,
	})

	clientAccessController = clientaccess.NewClientAccessController(clientaccess.ClientAccessControllerConfig{
		AlbumService:     albumService,
		Keys:             photoKeys,
		PhotoService:     photoService,
		Renderer:         renderer,
		SelectionService: selectionService,
		Storage:          photoStorage,
		UnlockedSessions: unlockedSessions,
		ZipService:       zipService,
	})

	homeController = home.NewHomeController(home.HomeControllerConfig{
		Renderer: renderer,
	})

	photographerController = photographer.NewPhotographerController(photographer.PhotographerControllerConfig{
		AlbumService:     albumService,
		BaseURL:          config.BaseURL,
		IdentityService:  identityService,
		Keys:             photoKeys,
		Mailer:           emailService,
		MaxUploadBytes:   int64(config.MaxUploadMB) << 20,
		PhotoService:     photoService,
		Renderer:         renderer,
		SelectionService: selectionService,
		Storage:          photoStorage,
	})

	supportController = support.NewSupportController(support.SupportControllerConfig{
		Mailer:   emailService,
		Renderer: renderer,
	})

	/*
	 * Setup router and http server
	 */
	slog.Debug("setting up routes...")

	routerConfig := mux.RouterConfig{
		Address:              config.Host,
		Debug:                Version == "development",
		ServeStaticContent:   true,
		StaticContentRootDir: "app",
		StaticContentPrefix:  "/static/",
		StaticFS:             appFS,
		HttpWriteTimeout:     60,
	}

	m := mux.SetupRouter(routerConfig, buildRoutes(newAccessMiddleware(sessionResolver)))
	httpServer, quit := mux.SetupServer(routerConfig, m)

	/*
	 * Start the background jobs
	 */
	zipService.StartCleanupRoutine(24 * time.Hour)
	thumbnailCreator.StartSweepRoutine(time.Hour, shutdownCtx.Done())
	setupExpirationSweep(shutdownCtx, time.Duration(config.ExpirationSweepMinutes)*time.Minute)

	/*
	 * Wait for graceful shutdown
	 */
	slog.Info("server started")

	<-quit

	cancel()
	thumbnailCreator.Stop()
	zipService.StopCleanupRoutine()
	mux.Shutdown(httpServer)
	slog.Info("server stopped")
}

/*
buildRoutes lists every route of the site. Each one goes through the access
middleware, which decides from the path alone, so the list here only maps
paths to handlers.
*/
func buildRoutes(accessMiddleware mux.MiddlewareFunc) []mux.Route {
	routes := []mux.Route{
		{Path: "GET /heartbeat", HandlerFunc: heartbeat},
		{Path: "GET /metrics", HandlerFunc: promhttp.Handler().ServeHTTP},
		{Path: "GET /", HandlerFunc: homeController.HomePage},

		{Path: "GET /login", HandlerFunc: authController.LoginPage},
		{Path: "POST /login", HandlerFunc: authController.LoginAction},
		{Path: "POST /api/login", HandlerFunc: authController.ApiLogin},
		{Path: "GET /register", HandlerFunc: authController.RegisterPage},
		{Path: "POST /register", HandlerFunc: authController.RegisterAction},
		{Path: "GET /auth/callback", HandlerFunc: authController.Callback},
		{Path: "GET /logout", HandlerFunc: authController.Logout},

		{Path: "GET /support", HandlerFunc: supportController.SupportPage},
		{Path: "POST /support", HandlerFunc: supportController.SupportAction},

		{Path: "GET /dashboard", HandlerFunc: photographerController.DashboardPage},
		{Path: "GET /dashboard/albums/new", HandlerFunc: photographerController.NewAlbumPage},
		{Path: "POST /dashboard/albums", HandlerFunc: photographerController.CreateAlbumAction},
		{Path: "GET /dashboard/albums/{id}", HandlerFunc: photographerController.AlbumPage},
		{Path: "GET /dashboard/albums/{id}/edit", HandlerFunc: photographerController.EditAlbumPage},
		{Path: "POST /dashboard/albums/{id}", HandlerFunc: photographerController.UpdateAlbumAction},
		{Path: "POST /dashboard/albums/{id}/delete", HandlerFunc: photographerController.DeleteAlbumAction},
		{Path: "POST /dashboard/albums/{id}/photos", HandlerFunc: photographerController.UploadPhotosAction},
		{Path: "POST /dashboard/albums/{id}/notify", HandlerFunc: photographerController.NotifyClientAction},
		{Path: "POST /dashboard/albums/{id}/deliver", HandlerFunc: photographerController.DeliverAction},

		{Path: "GET /client", HandlerFunc: clientAccessController.AlbumListPage},
		{Path: "GET /client/", HandlerFunc: clientAccessController.AlbumListPage},
		{Path: "GET /client/albums/{id}", HandlerFunc: clientAccessController.ViewAlbumPage},
		{Path: "POST /client/albums/{id}/unlock", HandlerFunc: clientAccessController.UnlockAlbumAction},
		{Path: "POST /client/albums/{id}/photos/{photoid}/toggle", HandlerFunc: clientAccessController.ToggleSelection},
		{Path: "POST /client/albums/{id}/submit", HandlerFunc: clientAccessController.SubmitSelectionAction},
		{Path: "GET /client/albums/{id}/photos/{photoid}/download", HandlerFunc: clientAccessController.DownloadImage},
		{Path: "GET /client/albums/{id}/download-all", HandlerFunc: clientAccessController.DownloadAllImagesInAlbum},
		{Path: "GET /client/downloads/{id}/{filename}", HandlerFunc: clientAccessController.DownloadZip},
	}

	for index := range routes {
		routes[index].Middlewares = []mux.MiddlewareFunc{accessMiddleware}
	}

	return routes
}

func heartbeat(w http.ResponseWriter, r *http.Request) {
	httphelpers.TextOK(w, "OK")
}

/*
setupExpirationSweep marks albums whose expiration has passed as Expired.
Reads already treat them as expired; the sweep keeps the stored status and
the photographer's dashboard in line with that.
*/
func setupExpirationSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		runner := func() {
			sweepCtx, sweepCancel := context.WithTimeout(ctx, time.Minute)
			defer sweepCancel()

			count, err := albumService.ExpireDue(sweepCtx, time.Now())
			if err != nil {
				slog.Error("album expiration sweep failed", "error", err)
				return
			}

			if count > 0 {
				slog.Info("album expiration sweep finished", "expired", count)
			}
		}

		runner()

		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				runner()
			}
		}
	}()
}
