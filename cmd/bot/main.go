package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/camhive/live-core/internal/bot"
)

func main() {
	app := &cli.App{
		Name:        "camhive-bot",
		Usage:       "Scripted viewer for smoke-testing a running stack",
		Description: "",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Value: "localhost:3001",
				Usage: "API host",
			},
			&cli.StringFlag{
				Name:  "wsHost",
				Value: "localhost:3002",
				Usage: "websocket nudge host",
			},
			&cli.StringFlag{
				Name:     "broadcaster",
				Usage:    "broadcaster id to watch",
				Required: true,
			},
		},
		Action: startBot,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Printf("%v\n", err)
	}
}

func startBot(c *cli.Context) error {
	viewer, err := bot.New(c.String("host"), c.String("wsHost"), c.String("broadcaster"))
	if err != nil {
		return err
	}

	return viewer.Start()
}
