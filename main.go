package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/patrickmn/go-cache"
	"github.com/rs/cors"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"
	"golang.org/x/time/rate"
)

// App wires the dataset store, auth, and limiter components together and
// carries the runtime configuration.
type App struct {
	DataDir      string
	IsProduction bool
	StartTime    time.Time
	VerifyRPS    int
	VerifyBurst  int

	Store      *CsvStore
	Tokens     *TokenStore
	Auth       *AuthGate
	Limiter    ClientLimiter
	StatsCache *cache.Cache

	LimiterMap   map[string]*rate.Limiter
	LimiterMutex sync.Mutex
}

// newApp builds an App rooted at dataDir with the given admin secret.
func newApp(dataDir, adminSecret string) (*App, error) {
	store := NewCsvStore(dataDir)
	tokens := NewTokenStore(
		filepath.Join(store.BackupDir(), TokensFilename),
		getEnvDuration("TOKEN_TTL", time.Hour),
	)
	auth, err := NewAuthGate(adminSecret, tokens)
	if err != nil {
		return nil, err
	}

	return &App{
		DataDir:      dataDir,
		IsProduction: os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production",
		StartTime:    time.Now(),
		VerifyRPS:    getEnvInt("VERIFY_RATE_RPS", 1),
		VerifyBurst:  getEnvInt("VERIFY_RATE_BURST", 5),
		Store:        store,
		Tokens:       tokens,
		Auth:         auth,
		Limiter:      NewSlidingWindowLimiter(RateWindowCeiling, RateWindowSeconds*time.Second),
		StatsCache:   cache.New(5*time.Minute, 10*time.Minute),
		LimiterMap:   make(map[string]*rate.Limiter),
	}, nil
}

func main() {
	_ = godotenv.Load()

	adminSecret := os.Getenv("ADMIN_PASSWORD")
	if adminSecret == "" {
		logFatal("ADMIN_PASSWORD must be set")
	}

	app, err := newApp(getEnv("DATA_DIR", "data"), adminSecret)
	if err != nil {
		logFatal("Failed to initialize: %v", err)
	}
	logInfo("Starting Skillboard in %s mode", map[bool]string{true: "production", false: "development"}[app.IsProduction])

	if info, err := app.Store.Info(); err == nil {
		logInfo("Live dataset: %d bytes, %d rows, modified %s", info.Size, info.RowCount, info.Modified.Format(time.RFC3339))
	} else {
		logInfo("No dataset uploaded yet")
	}

	startServer(app.setupRouter())
}

// setupRouter builds the Gin engine with the full middleware chain and routes.
func (app *App) setupRouter() *gin.Engine {
	if app.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logWarn("Failed to set trusted proxies: %v", err)
	}

	// Leaderboard data must never be served stale by an intermediary.
	router.Use(cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	}))
	router.Use(requestIDMiddleware())

	router.GET(RouteAPI, app.apiHandler)
	router.GET(RouteAdmin, app.adminHandler)
	router.POST(RouteAdmin, app.adminHandler)
	router.GET(RouteHealth, app.healthzHandler)

	return router
}

// startServer runs the HTTP server behind the CORS layer until a shutdown
// signal arrives. Preflight requests are answered by the CORS handler with a
// success status and no body.
func startServer(router *gin.Engine) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	corsLayer := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           corsLayer.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		logInfo("Shutdown signal received, shutting down server gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	logInfo("Server starting on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	logInfo("Server shutdown complete")
}
