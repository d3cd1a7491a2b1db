package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"mensajeria/internal/authclient"
	"mensajeria/internal/config"
	apphttp "mensajeria/internal/http"
	"mensajeria/internal/repository/postgres"
	"mensajeria/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn := postgres.NewConn(postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	defer conn.Close()

	messages := postgres.NewMessageRepository(conn)
	if err := messages.Init(ctx); err != nil {
		logger.Warnf("database not ready, will retry on first use: %v", err)
	} else {
		logger.Infof("connected to database %s on %s:%d", cfg.Database.Name, cfg.Database.Host, cfg.Database.Port)
	}

	peer := authclient.New(cfg.Peer.URL, cfg.Peer.Timeout, logger)
	messageService := service.NewMessageService(messages, peer, logger)

	gin.SetMode(gin.ReleaseMode)
	router := apphttp.NewRouter(logger, nil)
	apphttp.NewMessageHandler(messageService, cfg.Database.Name, peer.BaseURL(), logger).RegisterRoutes(router)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Infof("resource service listening on %s (authority %s)", addr, peer.BaseURL())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}
