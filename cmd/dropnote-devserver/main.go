package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dropnote/internal/auth"
	"dropnote/internal/config"
	"dropnote/internal/middleware"
	"dropnote/internal/server"
	"dropnote/internal/store"
)

func main() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := config.LoadDotEnv(".env"); err != nil {
		log.WithError(err).Fatal("load .env")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	gin.SetMode(cfg.GinMode)
	st := store.NewWithOptions(store.Options{StateFile: cfg.StateFile, NoteTTL: cfg.NoteTTL, Logger: log})
	if cfg.SeedDemo {
		if err := server.SeedDemoAccounts(st); err != nil {
			log.WithError(err).Fatal("seed demo accounts")
		}
		log.WithField("accounts", server.DemoAccounts).Info("demo accounts ready")
	}

	tokenCfg := auth.TokenConfig{
		Secret: cfg.MasterSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "dropnote-devserver",
	}

	dropLimiter := middleware.NewRateLimiter(1, cfg.DropWindow)
	defer dropLimiter.Close()

	router := server.NewRouter(server.Deps{
		Store:       st,
		TokenConfig: tokenCfg,
		DropLimiter: dropLimiter,
		Logger:      log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{"port": cfg.Port, "drop_window": cfg.DropWindow.String()}).Info("dev note service listening")
	if err := server.Run(ctx, cfg, router); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("dev note service stopped")
}
