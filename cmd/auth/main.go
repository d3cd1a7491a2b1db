package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"mensajeria/internal/archive"
	"mensajeria/internal/auth"
	"mensajeria/internal/config"
	apphttp "mensajeria/internal/http"
	"mensajeria/internal/repository"
	"mensajeria/internal/repository/memory"
	"mensajeria/internal/repository/sqlite"
	"mensajeria/internal/requestlog"
	"mensajeria/internal/service"
	"mensajeria/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	flags := pflag.NewFlagSet("auth", pflag.ExitOnError)
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if cfg.Auth.LogFile != "" {
		logFile, err := openLogFile(cfg.Auth.LogFile)
		if err != nil {
			logger.Warnf("log file disabled: %v", err)
		} else {
			defer logFile.Close()
			logger.SetOutput(io.MultiWriter(os.Stdout, logFile))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeUsers, err := buildUserStore(cfg)
	if err != nil {
		logger.Fatalf("open user store: %v", err)
	}
	defer closeUsers()

	if err := users.Init(ctx); err != nil {
		logger.Fatalf("init user store: %v", err)
	}

	tokens := auth.NewManager(cfg.Auth.Secret, cfg.TokenLifetime())
	userService, err := service.NewUserService(users, tokens, logger)
	if err != nil {
		logger.Fatalf("setup user service: %v", err)
	}
	if err := userService.Seed(ctx, service.DefaultSeedUsers); err != nil {
		logger.Fatalf("seed users: %v", err)
	}

	ring := requestlog.NewRing(requestlog.DefaultCapacity)

	var archiver *archive.Archiver
	var archives apphttp.ArchiveLister
	if cfg.Archive.Bucket != "" {
		store, err := storage.NewS3ServiceFromEnv(ctx, storage.Options{
			Region:   cfg.Archive.Region,
			Endpoint: cfg.Archive.Endpoint,
			Profile:  cfg.Archive.Profile,
		})
		if err != nil {
			logger.Fatalf("setup storage: %v", err)
		}
		archiver = archive.New(archive.Config{
			Bucket:   cfg.Archive.Bucket,
			Prefix:   cfg.Archive.Prefix,
			Interval: cfg.Archive.Interval,
			Logger:   logger,
		}, ring, store)
		archiver.Start(ctx)
		archives = archiver
	}

	gin.SetMode(gin.ReleaseMode)
	router := apphttp.NewRouter(logger, ring)
	apphttp.NewAuthHandler(userService, ring, archives, apphttp.AuthSettings{
		TokenExpireMinutes: cfg.Auth.TokenExpireMinutes,
		Port:               cfg.Auth.Port,
		Environment:        cfg.Environment,
		UserStore:          cfg.Auth.UserStore,
	}, logger).RegisterRoutes(router)

	addr := fmt.Sprintf(":%d", cfg.Auth.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Infof("credential authority listening on %s (token lifetime %d min, user store %s)",
			addr, cfg.Auth.TokenExpireMinutes, cfg.Auth.UserStore)
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
	if archiver != nil {
		archiver.Shutdown(shutdownCtx)
	}

	logger.Info("bye")
}

func buildUserStore(cfg config.Config) (repository.UserStore, func(), error) {
	if cfg.Auth.UserStore != "sqlite" {
		return memory.NewUserStore(), func() {}, nil
	}

	db, err := sqlite.Open(cfg.Auth.UserDBPath)
	if err != nil {
		return nil, nil, err
	}
	return sqlite.NewUserRepository(db), func() { _ = db.Close() }, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
