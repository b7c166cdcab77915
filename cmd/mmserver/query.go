package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mastermechanic/mmserver/client"
	"github.com/mastermechanic/mmserver/models"
)

type QueryCommand struct {
	ServerURL string `help:"The URL of the MasterMechanic server." env:"MM_SERVER_URL" default:"http://localhost:9020"`
	NoContext bool   `help:"Do not use knowledge context." default:"false"`
	Text      string `arg:"" help:"The question to ask."`
	LogLevel  string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c QueryCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)
	if c.NoContext {
		log.Info("Querying without context")
	}

	mmc := client.New(c.ServerURL).WithSource("cli")
	f := func(ctx context.Context, chunk []byte) error {
		_, err := os.Stdout.Write(chunk)
		return err
	}
	if err = mmc.QueryPost(ctx, models.QueryPostRequest{
		Text:      c.Text,
		NoContext: c.NoContext,
	}, f); err != nil {
		return err
	}
	fmt.Println()
	return nil
}
