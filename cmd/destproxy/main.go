package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/prognoshealth/destproxy/app"
	"github.com/prognoshealth/destproxy/config"
	"github.com/prognoshealth/destproxy/logging"
)

// Set by goreleaser ldflags.
var version = "dev"

func main() {
	cli, err := config.Parse("destproxy", "Forwards api gateway requests to the host named in their headers.", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load(cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// No scrape endpoint inside lambda, upstream metrics stay off.
	a, err := app.New(cfg, logger, nil)
	if err != nil {
		logger.Fatal("failed building app", zap.Error(err))
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("config", cfg.FilePath()),
		zap.Int("routes", len(cfg.Routes)),
	)

	lambda.Start(a.Invoke)
}
