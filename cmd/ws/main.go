package main

import (
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/urfave/cli/v2"

	"github.com/camhive/live-core/internal/api"
	"github.com/camhive/live-core/internal/config"
	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/eventbus"
	"github.com/camhive/live-core/internal/ws"
)

func main() {
	app := &cli.App{
		Name:        "camhive-ws",
		Usage:       "Websocket nudge server",
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
		Action: startWs,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("")
	}
}

func startWs(c *cli.Context) error {
	config.Init()

	rdb := redis.NewClient(&redis.Options{
		Addr: viper.GetString("app.redis_addr"),
		DB:   0,
	})

	authenticator := api.NewAuthenticator(
		viper.GetString("auth_service.addr"),
		[]byte(viper.GetString("auth_service.cookie_secret")),
	)

	wsApp := ws.New(ws.WsAppOptions{
		Address:          c.String("address"),
		Env:              core.EnvironmentFromString(c.String("env")),
		EventsSubscriber: eventbus.RedisPubSub(rdb),
		Authenticator:    authenticator,
	})

	return wsApp.Start()
}
