package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cantostudio/internal/csmiddleware"
	handlers_admin "cantostudio/internal/handlers/admin"
	handlers_lgpd "cantostudio/internal/handlers/lgpd"
	handlers_metrics "cantostudio/internal/handlers/metrics"
	handlers_schedules "cantostudio/internal/handlers/schedules"
	"cantostudio/internal/models/csconfig"
	"cantostudio/internal/models/cslog"
	"cantostudio/internal/models/csstudio"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const VERSION string = "0.3.0"

var BuildID string

func parseCommandLineArgs() (configFile string, shouldCreateExample bool, versionDisplay bool, err error) {
	var config = flag.String("config", "", "Fichier de configuration YAML")
	var example = flag.Bool("example", false, "Créer un fichier de configuration exemple")
	var version = flag.Bool("version", false, "version du produit")
	flag.Parse()

	if *version {
		return "", false, true, nil
	}

	if *example {
		return *config, true, false, nil
	}

	if *config == "" {
		return "", false, false, fmt.Errorf("fichier de configuration requis")
	}

	return *config, false, false, nil
}

func initConfiguration() *csconfig.Config {
	configFile, shouldCreateExample, versionDisplay, err := parseCommandLineArgs()
	if err != nil {
		fmt.Println("Usage:")
		fmt.Println("  cantostudio -config cantostudio.yaml")
		fmt.Println("  cantostudio -example  (pour créer un fichier exemple)")
		fmt.Println("  cantostudio -version  (affiche la version)")
		os.Exit(1)
	}

	if versionDisplay {
		println(VERSION)
		os.Exit(0)
	}

	csconfig.CreateExample(shouldCreateExample, configFile)

	conf, err := csconfig.LoadAndValidate(configFile)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	return conf
}

func newServer(config *csconfig.Config) *gin.Engine {
	if config.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// sans trustedproxies aucun en-tête X-Forwarded-For / X-Real-IP n'est cru
	if err := r.SetTrustedProxies(config.TrustedProxies); err != nil {
		log.Fatal().Err(err).Msg("trustedproxies invalide")
	}
	if config.TrustedPlatform != "" {
		switch config.TrustedPlatform {
		case "cloudflare":
			r.TrustedPlatform = gin.PlatformCloudflare
		case "google":
			r.TrustedPlatform = gin.PlatformGoogleAppEngine
		case "flyio":
			r.TrustedPlatform = gin.PlatformFlyIO
		default:
			r.TrustedPlatform = config.TrustedPlatform
		}
	}

	csmiddleware.InitMiddleware(r, config)
	return r
}

func setRoutes(r *gin.Engine, st *csstudio.Studio) {
	budgets := csmiddleware.NewBudgets(st.Configuration.RateLimit)
	loginLimiter := csmiddleware.NewLoginLimiter(st.Configuration.RateLimit, st.Redis)

	metricsHandler := handlers_metrics.NewMetricsHandler(st.Metrics, st.Events)
	scheduleHandler := handlers_schedules.NewScheduleHandler(st.Schedules, st.Events)
	lgpdHandler := handlers_lgpd.NewLgpdHandler(st.Lgpd, st.Captcha)
	adminHandler := handlers_admin.NewAdminHandler(st.Configuration.User.Hash, st, VERSION)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	r.GET("/healthz", adminHandler.Health)

	// API publiques
	api := r.Group("/api")
	{
		api.POST("/metrics/track", csmiddleware.RateLimit(st.Limiter, "track", budgets.Track), metricsHandler.Track)
		api.POST("/schedule", csmiddleware.RateLimit(st.Limiter, "schedule", budgets.Schedule), scheduleHandler.Post)
		api.POST("/data-request", csmiddleware.RateLimit(st.Limiter, "data-request", budgets.DataRequest), lgpdHandler.Submit)
		api.GET("/student", scheduleHandler.Student)
		if st.Captcha != nil {
			api.GET("/captcha", st.Captcha.Handler)
		}
	}

	// Routes d'authentification
	r.POST("/api/admin/login", loginLimiter, adminHandler.Login)
	r.POST("/api/admin/logout", adminHandler.Logout)

	// Routes d'administration protégées
	admin := r.Group("/api/admin")
	admin.Use(csmiddleware.AdminRequired())
	{
		admin.GET("/schedules", scheduleHandler.List)
		admin.PATCH("/schedules", scheduleHandler.UpdateStatus)
		admin.GET("/data-requests", lgpdHandler.List)
		admin.PATCH("/data-requests", lgpdHandler.Process)
		admin.GET("/metrics", metricsHandler.GetMetrics)
		admin.GET("/metrics/realtime", metricsHandler.GetRealtime)
	}
}

// startServer bloque jusqu'à SIGINT/SIGTERM puis arrête proprement le serveur
func startServer(r *gin.Engine, st *csstudio.Studio) error {
	srv := &http.Server{
		Addr:              st.Configuration.Listen.Website,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API démarrée sur http://%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Arrêt du serveur")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if BuildID == "" {
		BuildID = VERSION
	}

	config := initConfiguration()
	cslog.InitLogger(config.Logger, config.Production)
	csconfig.DisplayConfiguration(config, VERSION)

	st, err := csstudio.Init(config, VERSION, BuildID)
	if err != nil {
		log.Fatal().Err(err).Msg("initialisation impossible")
	}
	if err := st.Start(); err != nil {
		log.Fatal().Err(err).Msg("démarrage des tâches de fond impossible")
	}

	r := newServer(config)
	setRoutes(r, st)

	if err := startServer(r, st); err != nil {
		log.Error().Err(err).Msg("erreur serveur")
	}
	st.Close()
}
