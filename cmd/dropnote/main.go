// Command dropnote is a terminal front end for the note service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"dropnote/internal/api"
	"dropnote/internal/app"
	"dropnote/internal/config"
	"dropnote/internal/session"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	if err := config.LoadDotEnv(".env"); err != nil {
		log.WithError(err).Fatal("load .env")
	}
	cfg, err := config.LoadClientConfig()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := credentialStore(cfg)
	defer closeStore()

	client, err := api.New(api.Config{BaseURL: cfg.APIURL, Timeout: cfg.HTTPTimeout})
	if err != nil {
		log.WithError(err).Fatal("api client")
	}
	a, err := app.New(ctx, app.Deps{Gateway: client, Store: store, Logger: log})
	if err != nil {
		log.WithError(err).Fatal("app")
	}

	cli := &CLI{App: a, Out: os.Stdout, APIURL: cfg.APIURL, Live: cfg.Live, Logger: log}
	if err := cli.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, errorTitleStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func credentialStore(cfg config.ClientConfig) (session.CredentialStore, func()) {
	switch cfg.CredentialStore {
	case config.CredentialMemory:
		return session.NewMemoryStore(""), func() {}
	case config.CredentialRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		return session.NewRedisStore(rdb, cfg.RedisPrefix), func() { _ = rdb.Close() }
	default:
		return session.NewFileStore(cfg.CredentialFilePath()), func() {}
	}
}
