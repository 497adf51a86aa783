package main

import (
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/camhive/live-core/internal/config"
	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/thumbnail"
)

func main() {
	app := &cli.App{
		Name:        "camhive-thumbnailer",
		Usage:       "Thumbnail ingest service",
		Description: "",
		Flags:       []cli.Flag{},
		Action:      start,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("")
	}
}

func start(c *cli.Context) error {
	config.Init()

	db, err := sqlx.Connect("pgx", viper.GetString("app.database_url"))
	if err != nil {
		return err
	}
	defer db.Close()

	daemon, err := thumbnail.New(viper.GetString("app.nats_addr"), core.NewPresenceRepository(db))
	if err != nil {
		return err
	}

	return daemon.Run()
}
