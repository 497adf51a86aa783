package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/camhive/live-core/internal/api"
	"github.com/camhive/live-core/internal/config"
	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/eventbus"
	"github.com/camhive/live-core/internal/gate"
	"github.com/camhive/live-core/internal/presence"
	"github.com/camhive/live-core/internal/service"
	"github.com/camhive/live-core/internal/session"
	sigrelay "github.com/camhive/live-core/internal/signal"
	"github.com/camhive/live-core/internal/thumbnail"
)

func main() {
	app := &cli.App{
		Name:        "camhive-server",
		Usage:       "Live session coordination API",
		Description: "",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Usage:    "environment: either 'development' or 'production'",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "address",
				Usage: "listen IP and port, example: ':80' (default value) for listen on 0.0.0.0:80",
				Value: ":80",
			},
		},
		Action: startServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("")
	}
}

func startServer(c *cli.Context) error {
	env := core.EnvironmentFromString(c.String("env"))
	initLogger(env)
	config.Init()

	db, err := sqlx.Connect("pgx", viper.GetString("app.database_url"))
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: viper.GetString("app.redis_addr"),
		DB:   0,
	})
	defer rdb.Close()

	bus := eventbus.RedisPubSub(rdb)

	presenceStorage := core.NewPresenceRepository(db)
	sessionsStorage := core.NewSessionsRepository(db)
	signalsStorage := core.NewSignalsRepository(db)
	ledger := core.NewLedgerRepository(db)

	presenceStore := presence.NewStore(presenceStorage, bus, config.HeartbeatTTL(), config.SweepInterval())
	registry := session.NewRegistry(sessionsStorage, presenceStorage, bus, session.RegistryOptions{
		AnonymousPreview:     config.AnonymousPreview(),
		AuthenticatedPreview: config.AuthenticatedPreview(),
		DefaultPrivateRate:   config.PrivateRatePerMinute(),
	})
	relay := sigrelay.NewRelay(signalsStorage, sessionsStorage, bus, config.SignalTTL(), config.ConsumedGrace(), config.PruneInterval())
	accessGate := gate.New(sessionsStorage, ledger, bus, config.MinTipTokens())

	thumbnails, err := thumbnail.NewQueue(viper.GetString("app.nats_addr"))
	if err != nil {
		return err
	}

	router, err := eventbus.NewRouter(bus)
	if err != nil {
		return err
	}
	coordinator := service.NewCoordinator(router, registry, accessGate)

	coordinator.Start()
	defer coordinator.Stop()
	presenceStore.StartSweeper()
	defer presenceStore.Stop()
	relay.StartPruner()
	defer relay.Stop()

	webApp := api.NewApp(api.AppOptions{
		Presence:   presenceStore,
		Registry:   registry,
		Gate:       accessGate,
		Relay:      relay,
		Thumbnails: thumbnails,
	})

	return serve(c.String("address"), webApp.Router())
}

func serve(address string, handler http.Handler) error {
	quit := make(chan os.Signal, 1)
	done := make(chan struct{}, 1)

	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	server := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: 1 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Warn().Msg("received signal to terminate the server")
		log.Info().Msg("all services are stopped")
		close(done)
	})

	go func() {
		<-quit
		log.Warn().Msg("the server is going shutting down")

		// Wait 20 seconds for close http connections
		waitIdleConnCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(waitIdleConnCtx); err != nil {
			log.Fatal().Err(err).Msg("can't gracefully shutdown the server")
		}
	}()

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server has been closed immediatelly")
	}

	<-done
	log.Info().Msg("server stopped")

	return nil
}

func initLogger(env core.Environment) {
	cw := zerolog.NewConsoleWriter()
	log.Logger = log.Output(cw)

	level := zerolog.InfoLevel
	if env.IsDevelopment() {
		level = zerolog.DebugLevel
	}

	zerolog.SetGlobalLevel(level)
}
