package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/gin-gonic/gin"

	"github.com/tlemoine/signalmap/internal/config"
	"github.com/tlemoine/signalmap/internal/features/auth"
	"github.com/tlemoine/signalmap/internal/features/geolocate"
	"github.com/tlemoine/signalmap/internal/features/imaging"
	"github.com/tlemoine/signalmap/internal/features/mapview"
	"github.com/tlemoine/signalmap/internal/features/orgs"
	"github.com/tlemoine/signalmap/internal/features/reports"
	"github.com/tlemoine/signalmap/internal/feed"
	"github.com/tlemoine/signalmap/internal/middleware"
	"github.com/tlemoine/signalmap/internal/pkg/jwt"
	"github.com/tlemoine/signalmap/internal/pkg/photostore"
	"github.com/tlemoine/signalmap/internal/pkg/response"
	"github.com/tlemoine/signalmap/internal/remote"
	"github.com/tlemoine/signalmap/internal/routes"
)

func main() {
	cfg := config.Load()

	log.SetHandler(text.New(os.Stdout))
	if cfg.AppEnv == "production" {
		log.SetLevel(log.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.SetLevel(log.DebugLevel)
	}

	// Everything feeding off the live subscriptions stops when this goes.
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	store, err := openStore(appCtx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open remote store")
	}
	defer store.Close()

	verifier, err := auth.NewFirebaseVerifier(appCtx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize identity verifier")
	}
	identity := auth.NewIdentity()

	// Client mirrors over the push feeds.
	mirror := reports.NewMirror(store, identity)
	if err := mirror.Start(appCtx); err != nil {
		log.WithError(err).Fatal("failed to subscribe to reports feed")
	}
	orgsMirror := orgs.NewMirror(store)
	if err := orgsMirror.Start(appCtx); err != nil {
		log.WithError(err).Fatal("failed to subscribe to organizations feed")
	}

	pipeline := imaging.NewPipeline(imaging.Config{
		MaxSingleBytes: cfg.MaxSinglePhotoBytes,
		MaxTotalBytes:  cfg.MaxTotalPhotoBytes,
	})

	svc := reports.NewService(store, mirror, identity, cfg.MaxSinglePhotoBytes, cfg.MaxTotalPhotoBytes)
	if cfg.PhotoStorage == "cloudinary" {
		ps, err := photostore.NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, "signalmap")
		if err != nil {
			log.WithError(err).Fatal("failed to initialize photo storage")
		}
		svc.WithPhotoStorer(ps)
	}

	form := reports.NewForm(pipeline, svc)

	bridge := geolocate.NewBridgeProvider()
	acquirer := geolocate.NewAcquirer(bridge, nil)

	controller := mapview.NewController(mapview.Defaults{
		Center:  geolocate.Coordinate{Latitude: cfg.DefaultLatitude, Longitude: cfg.DefaultLongitude},
		Zoom:    cfg.DefaultZoom,
		FixZoom: cfg.FixZoom,
	}, acquirer, mirror, identity)

	// Map click opens (or re-anchors) the create-report session.
	controller.SetOnPointSelected(func(lat, lng float64) {
		if err := form.Open(lat, lng); err != nil {
			log.WithError(err).Warn("map click ignored")
		}
	})

	hub := feed.NewHub()
	go hub.Run()
	updates, _ := mirror.Listen()
	go hub.Pump(updates)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.FrontendURL))

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	routes.SetupRoutes(router, routes.Deps{
		JWTCfg:     jwt.DefaultConfig(cfg.JWTSecret),
		Verifier:   verifier,
		Identity:   identity,
		Reports:    reports.NewHandler(mirror, svc, form),
		Map:        mapview.NewHandler(controller, bridge),
		OrgsMirror: orgsMirror,
		Hub:        hub,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start gateway")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancelApp()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("forced shutdown")
	}

	log.Info("agent exited")
}

func openStore(ctx context.Context, cfg *config.Config) (remote.Store, error) {
	switch cfg.RemoteBackend {
	case "mongo":
		return remote.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
	default:
		return remote.NewFirestoreStore(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
	}
}
