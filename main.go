package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"riciti/bootstrap"
	btsConfig "riciti/config"
	"riciti/pkg/config"
	"riciti/pkg/logger"
	"riciti/pkg/queue"
	"riciti/pkg/redis"

	"github.com/gin-gonic/gin"
)

func init() {
	// registers the config blocks
	btsConfig.Initialize()
}

// App owns the server and the background workers for graceful shutdown
type App struct {
	server *http.Server
	worker *queue.Worker
	cancel context.CancelFunc
}

func main() {
	env := parseFlags()

	services, err := setupApplication(env)
	if err != nil {
		log.Fatalf("application setup failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		server: &http.Server{
			Addr:              ":" + config.Get("app.port"),
			Handler:           setupServer(services),
			ReadHeaderTimeout: 10 * time.Second,
		},
		worker: bootstrap.SetupQueue(ctx, services),
		cancel: cancel,
	}

	app.start()
}

// parseFlags returns the --env suffix
func parseFlags() string {
	var env string
	flag.StringVar(&env, "env", "", "load .env.<suffix>, e.g. --env=testing loads .env.testing")
	flag.Parse()
	return env
}

func setupApplication(env string) (*bootstrap.Services, error) {
	config.InitConfig(env)

	bootstrap.SetupLogger()

	if err := bootstrap.ValidateMpesa(); err != nil {
		return nil, err
	}

	bootstrap.SetupDB()

	bootstrap.SetupRedis()

	return bootstrap.SetupServices(), nil
}

func setupServer(services *bootstrap.Services) *gin.Engine {
	if !config.GetBool("app.debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	bootstrap.SetupRoute(router, services)
	return router
}

// start serves until SIGINT/SIGTERM, drains the server for 5s, then stops
// the reconciler
func (a *App) start() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.InfoString("Server", "start", "listening on "+a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-quit
	logger.InfoString("Server", "shutdown", "shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		logger.ErrorString("Server", "shutdown", err.Error())
	}

	a.cancel()
	if a.worker != nil {
		a.worker.Stop()
	}
	if redis.Enabled() {
		logger.LogIf(redis.Default.Close())
	}
	_ = logger.Logger.Sync()

	logger.InfoString("Server", "shutdown", "server stopped")
}
